package expiry

import "time"

// Aggregate reduces a classification and its dispatch outcomes into a report.
func Aggregate(set ClassifiedSet, outcomes []Outcome, at time.Time) RunReport {
	rep := RunReport{
		DueItemCount:        set.Due,
		ExpiredCount:        len(set.Expired),
		ImminentCount:       len(set.Imminent),
		PerRecipientResults: make([]Outcome, 0, len(outcomes)),
		Timestamp:           at,
	}
	for _, o := range outcomes {
		if o.Succeeded {
			rep.EmailsSent++
		} else {
			rep.EmailsFailed++
		}
		rep.PerRecipientResults = append(rep.PerRecipientResults, o)
	}
	return rep
}
