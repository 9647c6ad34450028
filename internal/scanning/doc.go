// Package scanning holds the data model of scanner XML reports and the codec
// that reads and writes them.
//
// # Overview
//
// A report is decoded into a Scan, which owns an ordered list of Host values.
// Each Host carries its Address, Hostnames and one or more Ports groups, plus
// the optional OS detection, uptime, sequencing and timing blocks reported by
// the scanner. Host order and port order always follow document order.
//
// # Tolerance
//
// Reports produced by different scanner versions differ in which attributes
// and elements they include. The model takes the union of all of them: every
// element or attribute that may be absent is a pointer or a slice, and nil
// means "not reported". Nothing is defaulted and no value is converted from
// its original text, so a port id stays "80" and a timestamp stays the string
// found in the document.
//
// Only the following are required, and their absence makes Decode fail with
// a *errors.SchemaError:
//   - at least one <scaninfo>, plus <verbose> and <debugging>
//   - for every host, an <address> with addr and addrtype
//   - for every host, at least one <ports> element
//
// A <ports> element without <port> children summarizes every port through
// <extraports>. It is valid and is kept as an empty Port list.
//
// # Usage
//
//	data, err := os.ReadFile("scan.xml")
//	if err != nil {
//		return err
//	}
//
//	scan, err := scanning.Decode(data)
//	if err != nil {
//		return err
//	}
//
//	for _, host := range scan.Hosts {
//		fmt.Printf("%s: %d ports\n", host.Address.Addr, host.PortCount())
//	}
//
// Encode writes a Scan back into the same dialect. Decoding the output again
// yields an equal Scan, which the normalize command relies on.
package scanning
