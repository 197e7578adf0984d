package oracle

import (
	"github.com/StrathCole/oracle-monitor/pkg/server/sources"
)

func init() {
	sources.Register("oracle.band", NewBandProtocolSource)
}
