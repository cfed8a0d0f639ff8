package wizard

import (
	"context"
	"fmt"
	"sync"

	"github.com/Malith-nethsiri/valuerpro-project-sub001/internal/draft"
	"github.com/Malith-nethsiri/valuerpro-project-sub001/internal/valuerapi"
)

// CreateReport creates a fresh backend report with defaulted top-level
// fields and binds its id to this session. The initializer is expected to
// call this (or LoadReport) at most once per session.
func (s *Session) CreateReport(ctx context.Context) error {
	s.mu.Lock()
	if s.reportID != "" {
		s.mu.Unlock()
		return ErrAlreadyInitialized
	}
	s.loading = true
	now := s.cfg.Clock()
	info := s.data.Step(draft.StepReportInfo)

	fields := map[string]any{
		"reference_number": draft.GetString(info, "reference_number"),
		"inspection_date":  draft.GetString(info, "inspection_date"),
		"valuation_date":   draft.GetString(info, "valuation_date"),
		"currency":         draft.GetString(info, "currency"),
		"purpose":          draft.GetString(info, "purpose"),
		"client_name":      draft.GetString(info, "client_name"),
	}
	if fields["reference_number"] == "" {
		fields["reference_number"] = "VR-" + now.Format("20060102-150405")
	}
	if fields["inspection_date"] == "" {
		fields["inspection_date"] = now.Format("2006-01-02")
	}
	if fields["valuation_date"] == "" {
		fields["valuation_date"] = now.Format("2006-01-02")
	}
	if fields["currency"] == "" {
		fields["currency"] = s.cfg.Currency
	}
	seq := s.editSeq
	s.mu.Unlock()

	report, err := s.api.CreateReport(ctx, fields)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	s.reportID = report.ID
	// Reflect the applied defaults back into the draft so the form shows
	// what the backend stored.
	info = s.data.Step(draft.StepReportInfo)
	for _, f := range []string{"reference_number", "inspection_date", "valuation_date", "currency"} {
		if draft.IsEmpty(info[f]) {
			info[f] = fields[f]
		}
	}
	if s.editSeq == seq {
		s.dirty = false
	}
	return nil
}

// Restore rebinds a previously created report and its locally persisted
// draft without a backend round-trip, used when a session is rehydrated
// from the local store after a restart. The persisted draft is treated
// as authoritative over whatever the backend holds.
func (s *Session) Restore(reportID, propertyID string, d draft.Data, step int) error {
	if reportID == "" {
		return fmt.Errorf("restore: report id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reportID != "" {
		return ErrAlreadyInitialized
	}
	s.reportID = reportID
	s.propertyID = propertyID
	s.data = d.Clone()
	if step < 0 {
		step = 0
	}
	if max := s.cfg.Flow.TotalSteps() - 1; step > max {
		step = max
	}
	s.currentStep = step
	s.dirty = false
	return nil
}

// LoadReport fetches an existing report and its sub-resources, reshaping
// them into the draft. The primary report fetch is fatal; properties,
// files and OCR results each independently degrade to empty on failure.
func (s *Session) LoadReport(ctx context.Context, id string) error {
	s.mu.Lock()
	if s.reportID != "" {
		s.mu.Unlock()
		return ErrAlreadyInitialized
	}
	s.loading = true
	s.mu.Unlock()

	report, err := s.api.GetReport(ctx, id)
	if err != nil {
		s.mu.Lock()
		s.loading = false
		s.mu.Unlock()
		return fmt.Errorf("load report %s: %w", id, err)
	}

	var (
		wg         sync.WaitGroup
		properties []valuerapi.Property
		files      []valuerapi.File
		ocr        []valuerapi.OCRResult
	)
	wg.Add(3)
	go func() {
		defer wg.Done()
		if out, err := s.api.ListProperties(ctx, id); err == nil {
			properties = out
		}
	}()
	go func() {
		defer wg.Done()
		if out, err := s.api.ListFiles(ctx, id); err == nil {
			files = out
		}
	}()
	go func() {
		defer wg.Done()
		if out, err := s.api.ListOCRResults(ctx, id); err == nil {
			ocr = out
		}
	}()
	wg.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	s.reportID = id
	s.data = reshape(report, properties, files)
	s.ocr = ocr
	s.currentStep = 0
	s.dirty = false
	return nil
}

// reshape converts backend resource shapes into the draft.
func reshape(report valuerapi.Report, properties []valuerapi.Property, files []valuerapi.File) draft.Data {
	d := draft.New()

	for step, fields := range report.Data {
		if !draft.KnownStep(step) {
			continue
		}
		sd := d.Step(step)
		for k, v := range fields {
			sd[k] = v
		}
	}

	info := d.Step(draft.StepReportInfo)
	fillEmpty(info, "reference_number", report.ReferenceNumber)
	fillEmpty(info, "purpose", report.Purpose)
	fillEmpty(info, "client_name", report.ClientName)
	fillEmpty(info, "inspection_date", report.InspectionDate)
	fillEmpty(info, "valuation_date", report.ValuationDate)
	fillEmpty(info, "currency", report.Currency)

	if len(properties) > 0 {
		p := properties[0]
		fillEmpty(info, "property_type", p.PropertyType)
		id := d.Step(draft.StepIdentification)
		for k, v := range p.Identification {
			fillEmpty(id, k, v)
		}
		loc := d.Step(draft.StepLocation)
		for k, v := range p.Location {
			fillEmpty(loc, k, v)
		}
	}

	if len(files) > 0 {
		rows := make([]map[string]any, 0, len(files))
		for _, f := range files {
			rows = append(rows, map[string]any{
				"id":           f.ID,
				"filename":     f.Filename,
				"content_type": f.ContentType,
				"size":         f.Size,
				"url":          f.URL,
				"kind":         f.Kind,
			})
		}
		d.Step(draft.StepAppendices)["files"] = rows
	}
	return d
}

func fillEmpty(sd draft.StepData, key string, v any) {
	if draft.IsEmpty(v) {
		return
	}
	if draft.IsEmpty(sd[key]) {
		sd[key] = v
	}
}

// SaveReport pushes the report's top-level fields, the full draft blob,
// and (when present) the valuation summary to the backend. Without a
// report id it is a no-op. The dirty flag clears only on success, and
// only if no edit landed while the save was in flight. Saves are
// serialized per session, whether triggered by the auto-save worker or
// by a manual save.
func (s *Session) SaveReport(ctx context.Context) error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	s.mu.Lock()
	if s.reportID == "" {
		s.mu.Unlock()
		return nil
	}
	id := s.reportID
	seq := s.editSeq
	data := s.data.Clone()
	needProperty := s.propertyID == "" && data.Step(draft.StepIdentification).PopulatedAny()
	s.mu.Unlock()

	info := data.Step(draft.StepReportInfo)
	fields := map[string]any{
		"reference_number": draft.GetString(info, "reference_number"),
		"purpose":          draft.GetString(info, "purpose"),
		"client_name":      draft.GetString(info, "client_name"),
		"inspection_date":  draft.GetString(info, "inspection_date"),
		"valuation_date":   draft.GetString(info, "valuation_date"),
		"currency":         draft.GetString(info, "currency"),
		"data":             stepBlob(data),
	}
	if err := s.api.UpdateReport(ctx, id, fields); err != nil {
		return fmt.Errorf("save report %s: %w", id, err)
	}

	if needProperty {
		p := valuerapi.Property{
			PropertyType:   draft.GetString(info, "property_type"),
			Identification: map[string]any(data.Step(draft.StepIdentification)),
			Location:       map[string]any(data.Step(draft.StepLocation)),
		}
		created, err := s.api.CreateProperty(ctx, id, p)
		if err != nil {
			return fmt.Errorf("save report %s: create property: %w", id, err)
		}
		s.mu.Lock()
		s.propertyID = created.ID
		s.mu.Unlock()
	}

	valuation := data.Step(draft.StepValuation)
	if mv, ok := draft.GetFloat(valuation, "market_value"); ok && mv > 0 {
		fsv, _ := draft.GetFloat(valuation, "forced_sale_value")
		summary := valuerapi.ValuationSummary{
			MarketValue:      mv,
			MarketValueWords: draft.GetString(valuation, "market_value_words"),
			ForcedSaleValue:  fsv,
		}
		if err := s.api.CreateValuationSummary(ctx, id, summary); err != nil {
			return fmt.Errorf("save report %s: valuation summary: %w", id, err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.editSeq == seq {
		s.dirty = false
	}
	s.lastSaveErr = nil
	return nil
}

func stepBlob(d draft.Data) map[string]map[string]any {
	out := make(map[string]map[string]any, len(d))
	for step, sd := range d {
		out[step] = map[string]any(sd)
	}
	return out
}
