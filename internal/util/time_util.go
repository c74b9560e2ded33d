package util

import (
	"time"
)

const layout = "2006-01-02"

func DateLte(t1, t2 time.Time) bool {
	return t1.Before(t2) || t1.Format(layout) == t2.Format(layout)
}
