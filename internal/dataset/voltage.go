package dataset

// Voltage classes, by maximum operating voltage.
const (
	VoltageUnknown         = "unknown"
	VoltageDistribution    = "distribution"
	VoltageSubTransmission = "sub_transmission"
	VoltageTransmission    = "transmission"
	VoltageExtraHigh       = "extra_high"
)

// Class thresholds in kV.
const (
	subTransmissionKV = 69.0
	transmissionKV    = 115.0
	extraHighKV       = 345.0
)

// VoltageClass buckets a substation by its MAX_VOLT:
//   - distribution: below 69 kV
//   - sub_transmission: 69 kV up to 115 kV
//   - transmission: 115 kV up to 345 kV
//   - extra_high: 345 kV and above
func VoltageClass(maxVolt *float64) string {
	if maxVolt == nil {
		return VoltageUnknown
	}
	switch v := *maxVolt; {
	case v >= extraHighKV:
		return VoltageExtraHigh
	case v >= transmissionKV:
		return VoltageTransmission
	case v >= subTransmissionKV:
		return VoltageSubTransmission
	case v > 0:
		return VoltageDistribution
	}
	return VoltageUnknown
}

// Class returns the substation's voltage class.
func (s Substation) Class() string { return VoltageClass(s.MaxVolt) }
