// Package meter formats transfer sizes and rates for logs and the
// interactive progress line.
package meter

import "time"

// TransferMeterCommand adds the transfer meter flag to a command.
type TransferMeterCommand struct {
	//nolint:lll
	TransferMeterFrequency time.Duration `long:"transfer-meter-frequency" env:"TRANSFER_METER_FREQUENCY" description:"If set to more than 0s it enables an interactive transfer meter"`
}
