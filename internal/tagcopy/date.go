package tagcopy

import "strings"

// yearOf extracts the leading run of decimal digits from a date value,
// which is the year in every date form the comment header carries
// ("2020", "2020-05-01", "2020/05"). Values without a leading digit are
// rejected.
func yearOf(value string) (string, bool) {
	s := strings.TrimSpace(value)
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i == 0 {
		return "", false
	}
	return s[:i], true
}
