package health

import (
	"fmt"

	"github.com/vyrodovalexey/avdataccess/internal/metadata"
	"github.com/vyrodovalexey/avdataccess/internal/routing"
)

// RoutingTableCheck reports ready when the routing table holds at least
// one rule.
func RoutingTableCheck(table *routing.Table) CheckFunc {
	return func() Check {
		if table == nil || table.Len() == 0 {
			return Check{Status: StatusUnhealthy, Message: "routing table is empty"}
		}
		return Check{
			Status:  StatusHealthy,
			Message: fmt.Sprintf("%d routing rules loaded", table.Len()),
		}
	}
}

// SignerCheck reports ready when signing key material is loaded.
func SignerCheck(signer *metadata.Signer) CheckFunc {
	return func() Check {
		if signer == nil {
			return Check{Status: StatusUnhealthy, Message: "signing key not loaded"}
		}
		return Check{Status: StatusHealthy}
	}
}
