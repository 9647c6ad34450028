// Package export turns decoded scan reports into the flat shapes consumed by
// downstream tools: one CSV row per reported port, or one JSON record per host.
package export

import (
	"fmt"
	"strings"

	"github.com/anstrom/scanexport/internal/scanning"
)

// Columns is the CSV header, in cell order.
var Columns = []string{
	"addr",
	"addrtype",
	"protocol",
	"portid",
	"state",
	"reason",
	"reason_ttl",
	"name",
	"product",
	"tunnel",
	"method",
	"conf",
}

// Row is one (host, port) pair. Fields that the report did not carry stay
// nil; they become empty CSV cells and are omitted from JSON.
type Row struct {
	Addr      string  `json:"addr" db:"addr"`
	AddrType  string  `json:"addrtype" db:"addrtype"`
	Protocol  *string `json:"protocol,omitempty" db:"protocol"`
	PortID    *string `json:"portid,omitempty" db:"portid"`
	State     *string `json:"state,omitempty" db:"state"`
	Reason    *string `json:"reason,omitempty" db:"reason"`
	ReasonTTL *string `json:"reason_ttl,omitempty" db:"reason_ttl"`
	Name      *string `json:"name,omitempty" db:"name"`
	Product   *string `json:"product,omitempty" db:"product"`
	Tunnel    *string `json:"tunnel,omitempty" db:"tunnel"`
	Method    *string `json:"method,omitempty" db:"method"`
	Conf      *string `json:"conf,omitempty" db:"conf"`
}

// Record returns the CSV cells of the row, in Columns order.
func (r Row) Record() []string {
	return []string{
		r.Addr,
		r.AddrType,
		cell(r.Protocol),
		cell(r.PortID),
		cell(r.State),
		cell(r.Reason),
		cell(r.ReasonTTL),
		cell(r.Name),
		cell(r.Product),
		cell(r.Tunnel),
		cell(r.Method),
		cell(r.Conf),
	}
}

func cell(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// EmptyGroup describes a <ports> group that lists no individual port. Such a
// group produces no rows.
type EmptyGroup struct {
	Addr       string
	AddrType   string
	HostIndex  int
	GroupIndex int
	Extraports []scanning.Extraports
}

// Summary renders the extraports of the group as "state=count" pairs.
func (g EmptyGroup) Summary() string {
	if len(g.Extraports) == 0 {
		return "none"
	}
	parts := make([]string, 0, len(g.Extraports))
	for _, e := range g.Extraports {
		parts = append(parts, fmt.Sprintf("%s=%s", e.State, e.Count))
	}
	return strings.Join(parts, ",")
}
