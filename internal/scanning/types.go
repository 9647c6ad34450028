package scanning

import "encoding/xml"

// Scan is the root of one decoded scanner report (<nmaprun>).
//
// Optional attributes and elements are pointers or slices so that "not
// reported" (nil) stays distinguishable from "reported as empty". Values are
// kept as the text found in the document.
type Scan struct {
	XMLName xml.Name `xml:"nmaprun" json:"-"`

	Scanner          *string `xml:"scanner,attr,omitempty" json:"scanner,omitempty"`
	Args             *string `xml:"args,attr,omitempty" json:"args,omitempty"`
	Start            *string `xml:"start,attr,omitempty" json:"start,omitempty"`
	Version          *string `xml:"version,attr,omitempty" json:"version,omitempty"`
	XMLOutputVersion *string `xml:"xmloutputversion,attr,omitempty" json:"xmloutputversion,omitempty"`

	// Scaninfo holds one entry per scan type and protocol; at least one is required.
	Scaninfo  []Scaninfo `xml:"scaninfo" json:"scaninfo"`
	Verbose   *Verbose   `xml:"verbose" json:"verbose"`
	Debugging *Debugging `xml:"debugging" json:"debugging"`
	Hosts     []Host     `xml:"host" json:"host"`
	Runstats  *Runstats  `xml:"runstats,omitempty" json:"runstats,omitempty"`
}

// Scaninfo summarizes the services probed by one scan type.
type Scaninfo struct {
	Type        string  `xml:"type,attr" json:"type"`
	Protocol    *string `xml:"protocol,attr,omitempty" json:"protocol,omitempty"`
	NumServices string  `xml:"numservices,attr" json:"numservices"`
	Services    string  `xml:"services,attr" json:"services"`
}

// Verbose is the verbosity level the scanner ran with.
type Verbose struct {
	Level string `xml:"level,attr" json:"level"`
}

// Debugging is the debug level the scanner ran with.
type Debugging struct {
	Level string `xml:"level,attr" json:"level"`
}

// Host is one scanned endpoint and everything reported about it.
//
// Address is the first <address> element of the host. Reports frequently
// carry a second one (a MAC address next to the IP); those are kept in
// ExtraAddresses so that re-encoding loses nothing.
type Host struct {
	Status         *Status   `json:"-"`
	Address        Address   `json:"address"`
	ExtraAddresses []Address `json:"-"`

	Hostnames     Hostnames      `json:"hostnames"`
	Ports         []Ports        `json:"ports"`
	Os            *Os            `json:"os,omitempty"`
	Uptime        *Uptime        `json:"uptime,omitempty"`
	Tcpsequence   *Tcpsequence   `json:"tcpsequence,omitempty"`
	Ipidsequence  *Ipidsequence  `json:"ipidsequence,omitempty"`
	Tcptssequence *Tcptssequence `json:"tcptssequence,omitempty"`
	Times         *Times         `json:"times,omitempty"`
}

// Status is the host up/down verdict.
type Status struct {
	State     string `xml:"state,attr" json:"state"`
	Reason    string `xml:"reason,attr" json:"reason"`
	ReasonTTL string `xml:"reason_ttl,attr" json:"reason_ttl"`
}

// Address is a network address of a host.
type Address struct {
	Addr     string  `xml:"addr,attr" json:"addr"`
	AddrType string  `xml:"addrtype,attr" json:"addrtype"`
	Vendor   *string `xml:"vendor,attr,omitempty" json:"-"`
}

// Hostnames holds the resolved name of a host. Only the first reported name
// is exported; any further names are kept in Additional.
type Hostnames struct {
	Hostname   *Hostname  `json:"hostname,omitempty"`
	Additional []Hostname `json:"-"`
}

// Hostname is a resolved host name and how it was obtained (user, PTR).
type Hostname struct {
	Name *string `xml:"name,attr,omitempty" json:"name,omitempty"`
	Type string  `xml:"type,attr" json:"type"`
}

// Ports is one <ports> group. A group with no Port list summarizes all of its
// ports through Extraports and must not be read as "nothing was scanned".
type Ports struct {
	Extraports []Extraports `xml:"extraports,omitempty" json:"extraports,omitempty"`
	Port       []Port       `xml:"port,omitempty" json:"port,omitempty"`
}

// Extraports is the summarized state of ports that were not listed one by one.
type Extraports struct {
	State        string         `xml:"state,attr" json:"state"`
	Count        string         `xml:"count,attr" json:"count"`
	Extrareasons []Extrareasons `xml:"extrareasons,omitempty" json:"extrareasons,omitempty"`
}

// Extrareasons breaks an Extraports summary down by reason. Older scanner
// versions omit proto and ports.
type Extrareasons struct {
	Reason *string `xml:"reason,attr,omitempty" json:"reason,omitempty"`
	Count  *string `xml:"count,attr,omitempty" json:"count,omitempty"`
	Proto  *string `xml:"proto,attr,omitempty" json:"proto,omitempty"`
	Ports  *string `xml:"ports,attr,omitempty" json:"ports,omitempty"`
}

// Port is an individually reported port.
type Port struct {
	Protocol *string  `xml:"protocol,attr,omitempty" json:"protocol,omitempty"`
	PortID   *string  `xml:"portid,attr,omitempty" json:"portid,omitempty"`
	State    *State   `xml:"state,omitempty" json:"state,omitempty"`
	Service  *Service `xml:"service,omitempty" json:"service,omitempty"`
}

// State is the state of a port and the probe response it was derived from.
type State struct {
	State     string `xml:"state,attr" json:"state"`
	Reason    string `xml:"reason,attr" json:"reason"`
	ReasonTTL string `xml:"reason_ttl,attr" json:"reason_ttl"`
}

// Service is the service detected on a port.
//
// Servicefp and CPE are kept in memory and re-encoded, but are not part of
// the JSON host export.
type Service struct {
	Name      *string `xml:"name,attr,omitempty" json:"name,omitempty"`
	Product   *string `xml:"product,attr,omitempty" json:"product,omitempty"`
	Servicefp *string `xml:"servicefp,attr,omitempty" json:"-"`
	Tunnel    *string `xml:"tunnel,attr,omitempty" json:"tunnel,omitempty"`
	Method    *string `xml:"method,attr,omitempty" json:"method,omitempty"`
	Conf      *string `xml:"conf,attr,omitempty" json:"conf,omitempty"`
	CPE       []CPE   `xml:"cpe,omitempty" json:"-"`
}

// CPE is a Common Platform Enumeration identifier.
type CPE struct {
	Name *string `xml:",chardata" json:"name,omitempty"`
}

// Os is the OS fingerprinting result for a host.
type Os struct {
	Portused []Portused `xml:"portused,omitempty" json:"portused,omitempty"`
	Osmatch  []Osmatch  `xml:"osmatch,omitempty" json:"osmatch,omitempty"`
}

// Portused is a port the OS fingerprinting relied on.
type Portused struct {
	State  string  `xml:"state,attr" json:"state"`
	Proto  string  `xml:"proto,attr" json:"proto"`
	PortID *string `xml:"portid,attr,omitempty" json:"portid,omitempty"`
}

// Osmatch is one candidate OS identification.
type Osmatch struct {
	Name     string    `xml:"name,attr" json:"name"`
	Accuracy string    `xml:"accuracy,attr" json:"accuracy"`
	Line     string    `xml:"line,attr" json:"line"`
	Osclass  []Osclass `xml:"osclass,omitempty" json:"osclass,omitempty"`
}

// Osclass is the classification detail of an Osmatch.
type Osclass struct {
	Type     string   `xml:"type,attr" json:"type"`
	Vendor   *string  `xml:"vendor,attr,omitempty" json:"vendor,omitempty"`
	Osfamily *string  `xml:"osfamily,attr,omitempty" json:"osfamily,omitempty"`
	Osgen    *string  `xml:"osgen,attr,omitempty" json:"osgen,omitempty"`
	Accuracy *string  `xml:"accuracy,attr,omitempty" json:"accuracy,omitempty"`
	CPE      []string `xml:"cpe,omitempty" json:"cpe,omitempty"`
}

// Uptime is the uptime guess derived from TCP timestamps.
type Uptime struct {
	Seconds  string `xml:"seconds,attr" json:"seconds"`
	Lastboot string `xml:"lastboot,attr" json:"lastboot"`
}

// Tcpsequence describes TCP initial sequence number predictability.
type Tcpsequence struct {
	Index      string  `xml:"index,attr" json:"index"`
	Difficulty string  `xml:"difficulty,attr" json:"difficulty"`
	Values     *string `xml:"values,attr,omitempty" json:"values,omitempty"`
}

// Ipidsequence describes IP ID generation.
type Ipidsequence struct {
	Class  string  `xml:"class,attr" json:"class"`
	Values *string `xml:"values,attr,omitempty" json:"values,omitempty"`
}

// Tcptssequence describes TCP timestamp generation.
type Tcptssequence struct {
	Class  string  `xml:"class,attr" json:"class"`
	Values *string `xml:"values,attr,omitempty" json:"values,omitempty"`
}

// Times holds round-trip timing estimates for a host.
type Times struct {
	Srtt   string `xml:"srtt,attr" json:"srtt"`
	Rttvar string `xml:"rttvar,attr" json:"rttvar"`
	To     string `xml:"to,attr" json:"to"`
}

// Runstats is the trailer of a report.
type Runstats struct {
	Finished *Finished   `xml:"finished,omitempty" json:"finished,omitempty"`
	Hosts    *HostCounts `xml:"hosts,omitempty" json:"hosts,omitempty"`
}

// Finished records when and how a scan ended.
type Finished struct {
	Time    string  `xml:"time,attr" json:"time"`
	Timestr *string `xml:"timestr,attr,omitempty" json:"timestr,omitempty"`
	Summary *string `xml:"summary,attr,omitempty" json:"summary,omitempty"`
	Elapsed string  `xml:"elapsed,attr" json:"elapsed"`
	Exit    *string `xml:"exit,attr,omitempty" json:"exit,omitempty"`
}

// HostCounts is the up/down tally of a scan.
type HostCounts struct {
	Up    string `xml:"up,attr" json:"up"`
	Down  string `xml:"down,attr" json:"down"`
	Total string `xml:"total,attr" json:"total"`
}

// Summarized reports whether the group lists no individual ports.
func (p *Ports) Summarized() bool {
	return len(p.Port) == 0
}

// PortCount returns the number of individually reported ports of the host.
func (h *Host) PortCount() int {
	n := 0
	for i := range h.Ports {
		n += len(h.Ports[i].Port)
	}
	return n
}

// PortCount returns the number of individually reported ports in the scan.
func (s *Scan) PortCount() int {
	n := 0
	for i := range s.Hosts {
		n += s.Hosts[i].PortCount()
	}
	return n
}
