package ipo

// Envelope is the success payload served for a market.
type Envelope struct {
	Success           bool   `json:"success"`
	Market            string `json:"market"`
	Data              string `json:"data"`
	SubscribableCount int    `json:"subscribable_count"`
	FutureCount       int    `json:"future_count"`
}

// ErrorEnvelope is the failure payload served for a market.
type ErrorEnvelope struct {
	Success bool   `json:"success"`
	Market  string `json:"market"`
	Error   string `json:"error"`
}

// NewEnvelope wraps a report for the wire.
func NewEnvelope(market Market, report Report) Envelope {
	return Envelope{
		Success:           true,
		Market:            market.Label,
		Data:              report.Markdown,
		SubscribableCount: len(report.Current),
		FutureCount:       len(report.Future),
	}
}

// NewErrorEnvelope wraps a whole-run failure for the wire.
func NewErrorEnvelope(market Market, err error) ErrorEnvelope {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return ErrorEnvelope{Success: false, Market: market.Label, Error: msg}
}
