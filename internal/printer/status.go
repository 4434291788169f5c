package printer

import "github.com/thereceipt/thermal-bridge/internal/sdk"

// Status is the label a status check reports to applications
type Status string

const (
	StatusOK       Status = "STATUS_OK"
	StatusNoPaper  Status = "STATUS_NO_PAPER"
	StatusOverHeat Status = "STATUS_OVER_HEAT"
	StatusOverFlow Status = "STATUS_OVER_FLOW"
	StatusUnknown  Status = "STATUS_UNKNOWN"
)

// StatusFromCode maps an SDK status code to its label. Codes the SDK does
// not document report as unknown.
func StatusFromCode(code int) Status {
	switch code {
	case sdk.StatusOK:
		return StatusOK
	case sdk.StatusNoPaper:
		return StatusNoPaper
	case sdk.StatusOverHeat:
		return StatusOverHeat
	case sdk.StatusOverFlow:
		return StatusOverFlow
	default:
		return StatusUnknown
	}
}
