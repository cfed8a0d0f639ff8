// Package preview renders a draft into a human-readable report preview:
// a markdown summary, its HTML form, and a print-quality PDF.
package preview

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Malith-nethsiri/valuerpro-project-sub001/internal/draft"
)

// Summary builds the markdown preview of a draft. It is a pure function
// of the draft: steps with no populated fields are omitted entirely.
func Summary(d draft.Data) string {
	var b strings.Builder

	info := d.Step(draft.StepReportInfo)
	title := draft.GetString(info, "reference_number")
	if title == "" {
		title = "Valuation Report (Draft)"
	}
	fmt.Fprintf(&b, "# %s\n\n", title)

	currency := draft.GetString(info, "currency")
	if currency == "" {
		currency = "LKR"
	}

	writeKV(&b, "Purpose", draft.GetString(info, "purpose"))
	writeKV(&b, "Client", draft.GetString(info, "client_name"))
	writeKV(&b, "Inspection Date", draft.GetString(info, "inspection_date"))
	writeKV(&b, "Valuation Date", draft.GetString(info, "valuation_date"))
	b.WriteString("\n")

	writeIdentification(&b, d)
	writeLocation(&b, d)
	writeSite(&b, d)
	writeBuildings(&b, d, currency)
	writeComparables(&b, d, currency)
	writeValuation(&b, d, currency)
	writeNarratives(&b, d)

	return strings.TrimRight(b.String(), "\n") + "\n"
}

func writeKV(b *strings.Builder, label, value string) {
	if value == "" {
		return
	}
	fmt.Fprintf(b, "**%s:** %s  \n", label, value)
}

func section(b *strings.Builder, sd draft.StepData, heading string) bool {
	if !sd.PopulatedAny() {
		return false
	}
	fmt.Fprintf(b, "## %s\n\n", heading)
	return true
}

func writeIdentification(b *strings.Builder, d draft.Data) {
	sd := d.Step(draft.StepIdentification)
	if !section(b, sd, "Property Identification") {
		return
	}
	writeKV(b, "Lot Number", draft.GetString(sd, "lot_number"))
	writeKV(b, "Plan Number", draft.GetString(sd, "plan_number"))
	writeKV(b, "Plan Date", draft.GetString(sd, "plan_date"))
	writeKV(b, "Surveyor", draft.GetString(sd, "surveyor_name"))
	if p, ok := draft.GetFloat(sd, "extent_perches"); ok {
		writeKV(b, "Extent", fmt.Sprintf("%s perches (%s sqm)",
			trimFloat(p), trimFloat(draft.PerchesToSqm(p))))
	} else {
		writeKV(b, "Extent", draft.GetString(sd, "extent_local"))
	}
	writeKV(b, "Deed Number", draft.GetString(sd, "deed_number"))
	writeKV(b, "Notary", draft.GetString(sd, "notary_name"))

	if bounds := draft.GetMap(sd, "boundaries"); len(bounds) > 0 {
		b.WriteString("\n**Boundaries:**\n\n")
		for _, dir := range []string{"North", "East", "South", "West"} {
			if v := draft.GetString(bounds, strings.ToLower(dir)); v != "" {
				fmt.Fprintf(b, "- %s: %s\n", dir, v)
			}
		}
	}
	b.WriteString("\n")
}

func writeLocation(b *strings.Builder, d draft.Data) {
	sd := d.Step(draft.StepLocation)
	if !section(b, sd, "Location") {
		return
	}
	writeKV(b, "Address", draft.GetString(sd, "address"))
	writeKV(b, "Village", draft.GetString(sd, "village"))
	writeKV(b, "GN Division", draft.GetString(sd, "gn_division"))
	writeKV(b, "DS Division", draft.GetString(sd, "ds_division"))
	writeKV(b, "District", draft.GetString(sd, "district"))
	writeKV(b, "Province", draft.GetString(sd, "province"))
	if lat, ok := draft.GetFloat(sd, "latitude"); ok {
		if lng, ok := draft.GetFloat(sd, "longitude"); ok {
			writeKV(b, "Coordinates", fmt.Sprintf("%s, %s", trimFloat(lat), trimFloat(lng)))
		}
	}
	b.WriteString("\n")
}

func writeSite(b *strings.Builder, d draft.Data) {
	sd := d.Step(draft.StepSite)
	if !section(b, sd, "Site") {
		return
	}
	writeKV(b, "Shape", draft.GetString(sd, "shape"))
	writeKV(b, "Topography", draft.GetString(sd, "topography"))
	writeKV(b, "Soil", draft.GetString(sd, "soil_type"))
	if f, ok := draft.GetFloat(sd, "frontage"); ok {
		writeKV(b, "Frontage", trimFloat(f)+" m")
	}
	writeKV(b, "Access", draft.GetString(sd, "access"))
	b.WriteString("\n")
}

func writeBuildings(b *strings.Builder, d draft.Data, currency string) {
	rows := draft.Rows(d.Step(draft.StepBuildings)["buildings"])
	if len(rows) == 0 {
		return
	}
	b.WriteString("## Buildings\n\n")
	b.WriteString("| # | Type | Floor Area (sqft) | Year | Condition | Value |\n")
	b.WriteString("|---|------|-------------------|------|-----------|-------|\n")
	for i, row := range rows {
		value := ""
		if v, ok := draft.BuildingValue(row); ok {
			value = money(v, currency)
		}
		fmt.Fprintf(b, "| %d | %s | %s | %s | %s | %s |\n",
			i+1,
			draft.GetString(row, "type"),
			draft.GetString(row, "floor_area"),
			draft.GetString(row, "construction_year"),
			draft.GetString(row, "condition"),
			value,
		)
	}
	b.WriteString("\n")
}

func writeComparables(b *strings.Builder, d draft.Data, currency string) {
	rows := draft.Rows(d.Step(draft.StepMarket)["comparables"])
	if len(rows) == 0 {
		return
	}
	b.WriteString("## Comparable Evidence\n\n")
	b.WriteString("| # | Description | Date | Price |\n")
	b.WriteString("|---|-------------|------|-------|\n")
	for i, row := range rows {
		price := ""
		if p, ok := draft.GetFloat(row, "price"); ok {
			price = money(p, currency)
		}
		fmt.Fprintf(b, "| %d | %s | %s | %s |\n",
			i+1,
			draft.GetString(row, "description"),
			draft.GetString(row, "date"),
			price,
		)
	}
	b.WriteString("\n")
}

func writeValuation(b *strings.Builder, d draft.Data, currency string) {
	sd := d.Step(draft.StepValuation)
	if !section(b, sd, "Valuation") {
		return
	}
	for i, row := range draft.Rows(sd["lines"]) {
		desc := draft.GetString(row, "description")
		if desc == "" {
			desc = fmt.Sprintf("Line %d", i+1)
		}
		if v, ok := draft.GetFloat(row, "value"); ok {
			fmt.Fprintf(b, "- %s: %s\n", desc, money(v, currency))
		}
	}
	b.WriteString("\n")
	if mv, ok := draft.GetFloat(sd, "market_value"); ok {
		writeKV(b, "Market Value", money(mv, currency))
	}
	writeKV(b, "Market Value in Words", draft.GetString(sd, "market_value_words"))
	if fsv, ok := draft.GetFloat(sd, "forced_sale_value"); ok {
		writeKV(b, "Forced Sale Value", money(fsv, currency))
	}
	b.WriteString("\n")
}

// writeNarratives emits the free-text sections that have content.
func writeNarratives(b *strings.Builder, d draft.Data) {
	sections := []struct {
		step    string
		field   string
		heading string
	}{
		{draft.StepUtilities, "description", "Utilities"},
		{draft.StepPlanning, "description", "Planning and Zoning"},
		{draft.StepLocality, "description", "Locality"},
		{draft.StepTransport, "description", "Transport"},
		{draft.StepEnvironmental, "description", "Environmental Factors"},
		{draft.StepLegal, "description", "Legal"},
	}
	for _, s := range sections {
		text := draft.GetString(d.Step(s.step), s.field)
		if text == "" {
			continue
		}
		fmt.Fprintf(b, "## %s\n\n%s\n\n", s.heading, text)
	}
}

// money formats an amount with thousands grouping: "LKR 1,250,000".
func money(v float64, currency string) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	whole, frac, _ := strings.Cut(s, ".")
	neg := strings.HasPrefix(whole, "-")
	whole = strings.TrimPrefix(whole, "-")
	var out []byte
	for i, c := range []byte(whole) {
		if i > 0 && (len(whole)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, c)
	}
	grouped := string(out)
	if neg {
		grouped = "-" + grouped
	}
	if frac != "" {
		grouped += "." + frac
	}
	if currency == "" {
		return grouped
	}
	return currency + " " + grouped
}

func trimFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
