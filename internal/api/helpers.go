package api

import (
	"fmt"
	"net/url"
	"strconv"
)

const (
	defaultLimit = 50
	maxLimit     = 100
)

// nanotokensPerToken is the number of nanotokens in one token
const nanotokensPerToken = 1_000_000_000

// NanotokensToTokens renders an amount of nanotokens as tokens with nine decimals
func NanotokensToTokens(nano uint64) string {
	return fmt.Sprintf("%d.%09d", nano/nanotokensPerToken, nano%nanotokensPerToken)
}

// parsePagination reads ?limit= and ?offset=, ignoring values out of range
func parsePagination(query url.Values) (limit, offset int) {
	limit = defaultLimit
	if parsed, err := strconv.Atoi(query.Get("limit")); err == nil && parsed > 0 && parsed <= maxLimit {
		limit = parsed
	}

	if parsed, err := strconv.Atoi(query.Get("offset")); err == nil && parsed >= 0 {
		offset = parsed
	}
	return limit, offset
}
