package http

import (
	"net/http"
	"sort"

	"github.com/golang/gddo/httputil/header"
)

// negotiateContentType picks a content type based on the Accept
// header from a request, and a supplied list of available content
// types in order of preference. If the Accept header mentions more
// than one available content type, the one with the highest quality
// (`q`) parameter is chosen; ties go to whichever appears first in
// the available types.
func negotiateContentType(r *http.Request, orderedPref []string) string {
	specs := header.ParseAccept(r.Header, "Accept")
	if len(specs) == 0 {
		return orderedPref[0]
	}

	preferred := []header.AcceptSpec{}
	for _, spec := range specs {
		if indexOf(orderedPref, spec.Value) < len(orderedPref) {
			preferred = append(preferred, spec)
		}
	}
	if len(preferred) > 0 {
		sort.Sort(byPreference{preferred, orderedPref})
		return preferred[0].Value
	}
	return ""
}

// byPreference sorts accept specs by descending suitability: higher
// quality first, and among equal qualities, the server's preference
// order.
type byPreference struct {
	specs []header.AcceptSpec
	prefs []string
}

func (s byPreference) Len() int {
	return len(s.specs)
}

func (s byPreference) Less(i, j int) bool {
	switch {
	case s.specs[i].Q == s.specs[j].Q:
		return indexOf(s.prefs, s.specs[i].Value) < indexOf(s.prefs, s.specs[j].Value)
	default:
		return s.specs[i].Q > s.specs[j].Q
	}
}

func (s byPreference) Swap(i, j int) {
	s.specs[i], s.specs[j] = s.specs[j], s.specs[i]
}

// indexOf searches short, unsorted slices of strings. Returning len
// rather than -1 for "not found" lets the result be compared directly
// when sorting.
func indexOf(ss []string, search string) int {
	for i, s := range ss {
		if s == search {
			return i
		}
	}
	return len(ss)
}
