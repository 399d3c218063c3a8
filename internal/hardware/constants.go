package hardware

const (
	// Consumer label shown by gpioinfo for requested lines.
	GpioConsumer = "relay-service"

	// Sequent Microsystems 4-relay HAT, a PCA9534-style port expander.
	SequentBaseAddress      = 0x38
	SequentAlternateAddress = 0x20
	SequentChannels         = 4

	sequentInputReg  = 0x00
	sequentOutputReg = 0x01
	sequentConfigReg = 0x03

	// Upper nibble drives the relays; the lower nibble stays as inputs.
	sequentConfigValue = 0x0F
	sequentAllOn       = 0xF0
)

// sequentRelayMasks holds the output bit for relays 1..4.
var sequentRelayMasks = [SequentChannels]byte{0x80, 0x40, 0x20, 0x10}
