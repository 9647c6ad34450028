package export

import (
	"github.com/anstrom/scanexport/internal/scanning"
)

// Walk visits the rows of scan in document order: hosts, then port groups,
// then ports. Every port yields exactly one row. A group without ports
// yields no row and is passed to notice instead, when notice is not nil.
//
// Walk stops at the first error returned by visit and returns it unchanged.
func Walk(scan *scanning.Scan, visit func(Row) error, notice func(EmptyGroup)) error {
	if scan == nil {
		return nil
	}

	for hi := range scan.Hosts {
		host := &scan.Hosts[hi]
		for gi := range host.Ports {
			group := &host.Ports[gi]
			if group.Summarized() {
				if notice != nil {
					notice(emptyGroup(host, hi, gi))
				}
				continue
			}
			for pi := range group.Port {
				if err := visit(newRow(host.Address, &group.Port[pi])); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// Flatten returns every row of scan along with the groups that produced none.
func Flatten(scan *scanning.Scan) ([]Row, []EmptyGroup) {
	var (
		rows  []Row
		empty []EmptyGroup
	)
	if scan != nil {
		rows = make([]Row, 0, scan.PortCount())
	}

	_ = Walk(scan, func(r Row) error {
		rows = append(rows, r)
		return nil
	}, func(g EmptyGroup) {
		empty = append(empty, g)
	})

	return rows, empty
}

func newRow(addr scanning.Address, port *scanning.Port) Row {
	row := Row{
		Addr:     addr.Addr,
		AddrType: addr.AddrType,
		Protocol: clone(port.Protocol),
		PortID:   clone(port.PortID),
	}
	if st := port.State; st != nil {
		row.State = clone(&st.State)
		row.Reason = clone(&st.Reason)
		row.ReasonTTL = clone(&st.ReasonTTL)
	}
	if svc := port.Service; svc != nil {
		row.Name = clone(svc.Name)
		row.Product = clone(svc.Product)
		row.Tunnel = clone(svc.Tunnel)
		row.Method = clone(svc.Method)
		row.Conf = clone(svc.Conf)
	}
	return row
}

func emptyGroup(host *scanning.Host, hostIndex, groupIndex int) EmptyGroup {
	extra := make([]scanning.Extraports, len(host.Ports[groupIndex].Extraports))
	copy(extra, host.Ports[groupIndex].Extraports)
	return EmptyGroup{
		Addr:       host.Address.Addr,
		AddrType:   host.Address.AddrType,
		HostIndex:  hostIndex,
		GroupIndex: groupIndex,
		Extraports: extra,
	}
}

// clone copies s so that rows never alias the scan they came from.
func clone(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
