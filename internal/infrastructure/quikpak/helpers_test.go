package quikpak

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func headerDoc(sid, country string) string {
	return fmt.Sprintf(`<?xml version="1.0" standalone="yes"?>
<ProcessWeaverInHeader>
<ShipmentID>%s</ShipmentID>
<BOLNo>BOL1</BOLNo>
<carriercode/>
<colltype>S</colltype>
<iscod>0</iscod>
<location>CAN</location>
<isresidential>1</isresidential>
<orderno>ORD0469657</orderno>
<order_date>20260213</order_date>
<ponumber>TEST-PO-001</ponumber>
<shipaddr1>100 Main Street</shipaddr1>
<shipaddr2/>
<shipcity>Buffalo</shipcity>
<shipcountry>%s</shipcountry>
<shipdate>20260214</shipdate>
<shipemail>jsmith@example.com</shipemail>
<shipname>John Smith</shipname>
<shipstate>NY</shipstate>
<shipviacode>UPS</shipviacode>
<shipzip>14201</shipzip>
<ship_comments/>
<void>N</void>
<customercode>HO1002</customercode>
<optionaltext001>7165551234</optionaltext001>
<optionaltext009/>
<OrgID>ISIDAT</OrgID>
<trackingNumber/>
<RateOnly>N</RateOnly>
</ProcessWeaverInHeader>
`, sid, country)
}

func detailDoc(sid string, weights ...string) string {
	doc := `<?xml version="1.0" standalone="yes"?>
<ProcessWeaverInDetail>
`
	for i, w := range weights {
		doc += fmt.Sprintf(`<InQueueDetail>
<ShipmentID>%s</ShipmentID>
<codAmount>0.000</codAmount>
<comment>BKGLKBL:Keyed Deadbolt, Black;</comment>
<declaredValue>0.000</declaredValue>
<height>6.0000</height>
<length>18.0000</length>
<packageID>PK%d</packageID>
<packageno>%d</packageno>
<units>LB</units>
<weight>%s</weight>
<width>12.0000</width>
<Hazardous>0</Hazardous>
</InQueueDetail>
`, sid, i+1, i+1, w)
	}
	return doc + "</ProcessWeaverInDetail>\n"
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}
