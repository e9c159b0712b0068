package recorder

// NoopRecorder is a no-op implementation used when SQLite is not configured.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) RecordScan(_ *ScanSnapshot) error      { return nil }
func (n *NoopRecorder) RecordHolding(_ *HoldingEvent) error   { return nil }
func (n *NoopRecorder) RecordLeverage(_ *LeverageEvent) error { return nil }
func (n *NoopRecorder) Close() error                          { return nil }
