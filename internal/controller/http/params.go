package http

import (
	"fmt"
	"net/url"
	"strconv"
	"time"
)

const maxPageSize = 100

func parseOptionalTime(s *string) (*time.Time, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, *s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// parsePaging reads limit and offset, defaulting the limit to 20
func parsePaging(q url.Values) (limit, offset int, err error) {
	limit = 20
	if s := q.Get("limit"); s != "" {
		limit, err = strconv.Atoi(s)
		if err != nil || limit <= 0 {
			return 0, 0, fmt.Errorf("invalid limit %q", s)
		}
		if limit > maxPageSize {
			limit = maxPageSize
		}
	}
	if s := q.Get("offset"); s != "" {
		offset, err = strconv.Atoi(s)
		if err != nil || offset < 0 {
			return 0, 0, fmt.Errorf("invalid offset %q", s)
		}
	}
	return limit, offset, nil
}
