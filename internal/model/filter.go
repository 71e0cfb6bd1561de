package model

type Bucket string

const (
	BucketDay   Bucket = "day"
	BucketWeek  Bucket = "week"
	BucketMonth Bucket = "month"
)

// ReportQuery holds the raw, untrusted query parameters recognized by every
// report endpoint. Parsing and narrowing happen in the scope builder.
type ReportQuery struct {
	DealershipID string
	StartDate    string
	EndDate      string
	Bucket       Bucket
}

func (q ReportQuery) TimeBucket() Bucket {
	switch q.Bucket {
	case BucketWeek, BucketMonth:
		return q.Bucket
	default:
		return BucketDay
	}
}
