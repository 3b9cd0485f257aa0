package services

import (
	"fmt"
	"regexp"
	"strings"
)

var userIDPattern = regexp.MustCompile(`^[A-Za-z0-9_:.-]{3,128}$`)

func NormalizeUserID(userID string) (string, error) {
	userID = strings.TrimSpace(userID)
	if !userIDPattern.MatchString(userID) {
		return "", fmt.Errorf("%w: %q", ErrInvalidUserID, userID)
	}
	return userID, nil
}

func clampLimit(limit, def, max int) int {
	if limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}
