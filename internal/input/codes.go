package input

// Event types and codes from linux/input-event-codes.h used by the engine.
const (
	EV_SYN = 0x00
	EV_KEY = 0x01
	EV_ABS = 0x03

	SYN_REPORT = 0x00

	ABS_X             = 0x00
	ABS_Y             = 0x01
	ABS_Z             = 0x02
	ABS_RZ            = 0x05
	ABS_GAS           = 0x09
	ABS_BRAKE         = 0x0a
	ABS_HAT0X         = 0x10
	ABS_HAT0Y         = 0x11
	ABS_MT_POSITION_X = 0x35
	ABS_MT_POSITION_Y = 0x36

	KEY_ESC          = 1
	KEY_1            = 2
	KEY_2            = 3
	KEY_3            = 4
	KEY_4            = 5
	KEY_A            = 30
	KEY_B            = 48
	KEY_C            = 46
	KEY_D            = 32
	KEY_ENTER        = 28
	KEY_SPACE        = 57
	KEY_UP           = 103
	KEY_LEFT         = 105
	KEY_RIGHT        = 106
	KEY_DOWN         = 108
	KEY_MUTE         = 113
	KEY_VOLUMEDOWN   = 114
	KEY_VOLUMEUP     = 115
	KEY_POWER        = 116
	KEY_NEXTSONG     = 163
	KEY_PLAYPAUSE    = 164
	KEY_PREVIOUSSONG = 165

	BTN_LEFT   = 0x110
	BTN_RIGHT  = 0x111
	BTN_MIDDLE = 0x112

	BTN_TRIGGER = 0x120
	BTN_THUMB   = 0x121
	BTN_THUMB2  = 0x122
	BTN_TOP     = 0x123
	BTN_TOP2    = 0x124
	BTN_PINKIE  = 0x125
	BTN_BASE    = 0x126

	BTN_SOUTH  = 0x130
	BTN_EAST   = 0x131
	BTN_C      = 0x132
	BTN_NORTH  = 0x133
	BTN_WEST   = 0x134
	BTN_Z      = 0x135
	BTN_TL     = 0x136
	BTN_TR     = 0x137
	BTN_TL2    = 0x138
	BTN_TR2    = 0x139
	BTN_SELECT = 0x13a
	BTN_START  = 0x13b
	BTN_MODE   = 0x13c
	BTN_THUMBL = 0x13d
	BTN_THUMBR = 0x13e

	BTN_TOUCH = 0x14a
)
