package ipo

// Validate keeps the records that are complete enough for the market and
// drops the rest. Dropping never fails the batch: every dropped record is
// reported in the returned Diagnostics. Codes are expected to be unique per
// batch; later duplicates are dropped.
func Validate(records []Record, market Market) ([]Record, Diagnostics) {
	diag := Diagnostics{Fetched: len(records)}
	valid := make([]Record, 0, len(records))
	seen := make(map[string]struct{}, len(records))

	for _, rec := range records {
		reason := validateRecord(rec, market)
		if reason == "" {
			if _, dup := seen[rec.Code]; dup {
				reason = ReasonDuplicateCode
			}
		}
		if reason != "" {
			diag.Add(StageValidate, reason, rec.Code, rec.Name)
			diag.Dropped++
			continue
		}
		seen[rec.Code] = struct{}{}
		valid = append(valid, rec)
	}

	diag.Kept = len(valid)
	return valid, diag
}

func validateRecord(rec Record, market Market) Reason {
	if rec.Code == "" {
		return ReasonMissingCode
	}
	if rec.Name == "" {
		return ReasonMissingName
	}
	if market.Validate != nil {
		return market.Validate(rec)
	}
	return ""
}
