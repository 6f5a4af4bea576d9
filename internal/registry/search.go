package registry

import (
	"strings"

	"github.com/arsenal-framework/arsenal/internal/modules"
)

// Search performs a case-insensitive substring match over the indexed
// descriptor fields (id, name, description, cve id, category, author).
// An exact CVE id match ranks first; all other hits follow in id order.
// An empty query returns nothing: searching is opt-in discovery, not
// enumeration.
func (r *Registry) Search(query string) []modules.Descriptor {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}
	needle := strings.ToLower(query)
	exactCVE := strings.ToUpper(query)

	var exact []modules.Descriptor
	var rest []modules.Descriptor
	for _, d := range r.ordered {
		if !strings.Contains(r.searchText[d.ID], needle) {
			continue
		}
		if d.CVE != "" && d.CVE == exactCVE {
			exact = append(exact, d)
		} else {
			rest = append(rest, d)
		}
	}
	return append(exact, rest...)
}
