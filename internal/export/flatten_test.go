package export

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anstrom/scanexport/internal/scanning"
)

const singlePortDoc = `<?xml version="1.0"?>
<nmaprun scanner="nmap">
<scaninfo type="syn" protocol="tcp" numservices="1" services="80"/>
<verbose level="0"/>
<debugging level="0"/>
<host><status state="up" reason="arp-response" reason_ttl="0"/>
<address addr="192.168.1.10" addrtype="ipv4"/>
<hostnames/>
<ports><port protocol="tcp" portid="80"><state state="open" reason="syn-ack" reason_ttl="64"/><service name="http"/></port></ports>
</host>
</nmaprun>`

func decodeFixture(t *testing.T, name string) *scanning.Scan {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("..", "scanning", "testdata", name))
	require.NoError(t, err)
	scan, err := scanning.Decode(data)
	require.NoError(t, err)
	return scan
}

func decodeString(t *testing.T, doc string) *scanning.Scan {
	t.Helper()
	scan, err := scanning.Decode([]byte(doc))
	require.NoError(t, err)
	return scan
}

func TestFlatten_SinglePort(t *testing.T) {
	rows, empty := Flatten(decodeString(t, singlePortDoc))

	require.Len(t, rows, 1)
	assert.Empty(t, empty)
	assert.Equal(t,
		[]string{"192.168.1.10", "ipv4", "tcp", "80", "open", "syn-ack", "64", "http", "", "", "", ""},
		rows[0].Record())
	assert.Nil(t, rows[0].Product)
	assert.Nil(t, rows[0].Conf)
}

func TestFlatten_DocumentOrder(t *testing.T) {
	rows, empty := Flatten(decodeFixture(t, "full.xml"))

	got := make([]string, 0, len(rows))
	for _, r := range rows {
		got = append(got, fmt.Sprintf("%s/%s/%s", r.Addr, *r.Protocol, *r.PortID))
	}
	assert.Equal(t, []string{
		"192.168.1.1/tcp/22",
		"192.168.1.1/tcp/80",
		"192.168.1.1/tcp/443",
		"192.168.1.2/udp/53",
	}, got)

	require.Len(t, empty, 1)
	assert.Equal(t, "192.168.1.2", empty[0].Addr)
	assert.Equal(t, 1, empty[0].HostIndex)
	assert.Equal(t, 0, empty[0].GroupIndex)
	assert.Equal(t, "closed=2", empty[0].Summary())
}

func TestFlatten_RowCountLaw(t *testing.T) {
	fixtures := []string{"single_port.xml", "extraports_only.xml", "full.xml", "legacy.xml"}

	for _, name := range fixtures {
		t.Run(name, func(t *testing.T) {
			scan := decodeFixture(t, name)

			want := 0
			for _, host := range scan.Hosts {
				for _, group := range host.Ports {
					want += len(group.Port)
				}
			}

			rows, _ := Flatten(scan)
			assert.Len(t, rows, want)
		})
	}
}

func TestFlatten_Deterministic(t *testing.T) {
	scan := decodeFixture(t, "full.xml")

	first, firstEmpty := Flatten(scan)
	second, secondEmpty := Flatten(scan)

	assert.Equal(t, first, second)
	assert.Equal(t, firstEmpty, secondEmpty)
}

func TestFlatten_ExtraportsOnly(t *testing.T) {
	rows, empty := Flatten(decodeFixture(t, "extraports_only.xml"))

	assert.Empty(t, rows)
	require.Len(t, empty, 1)
	assert.Equal(t, "10.0.0.5", empty[0].Addr)
	assert.Equal(t, "closed=100", empty[0].Summary())
}

func TestFlatten_MissingFields(t *testing.T) {
	rows, _ := Flatten(decodeFixture(t, "legacy.xml"))
	require.Len(t, rows, 2)

	assert.Equal(t,
		[]string{"172.16.0.9", "ipv4", "tcp", "25", "open", "", "", "smtp", "", "", "", ""},
		rows[0].Record())

	assert.Nil(t, rows[1].Protocol)
	assert.Nil(t, rows[1].PortID)
	assert.Nil(t, rows[1].Name)
	require.NotNil(t, rows[1].State)
	assert.Equal(t, "open", *rows[1].State)
}

func TestFlatten_RowsDoNotAliasScan(t *testing.T) {
	scan := decodeString(t, singlePortDoc)
	rows, _ := Flatten(scan)
	require.Len(t, rows, 1)

	*rows[0].PortID = "8080"
	*rows[0].State = "closed"

	port := scan.Hosts[0].Ports[0].Port[0]
	assert.Equal(t, "80", *port.PortID)
	assert.Equal(t, "open", port.State.State)
}

func TestFlatten_Nil(t *testing.T) {
	rows, empty := Flatten(nil)
	assert.Empty(t, rows)
	assert.Empty(t, empty)
}

func TestWalk_StopsOnError(t *testing.T) {
	scan := decodeFixture(t, "full.xml")
	stop := fmt.Errorf("sink closed")

	visited := 0
	err := Walk(scan, func(Row) error {
		visited++
		if visited == 2 {
			return stop
		}
		return nil
	}, nil)

	assert.Equal(t, stop, err)
	assert.Equal(t, 2, visited)
}

func TestEmptyGroup_Summary(t *testing.T) {
	tests := []struct {
		name  string
		group EmptyGroup
		want  string
	}{
		{"no extraports", EmptyGroup{}, "none"},
		{
			"two states",
			EmptyGroup{Extraports: []scanning.Extraports{
				{State: "closed", Count: "990"},
				{State: "filtered", Count: "7"},
			}},
			"closed=990,filtered=7",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.group.Summary())
		})
	}
}
