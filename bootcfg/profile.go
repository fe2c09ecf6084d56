package bootcfg

// DefaultPi4Config is the stock boot configuration for the Raspberry
// Pi 4B carrier: I2C buses for the sensor head, camera and display
// auto-detection, the audio codec overlays, USB gadget mode for the
// service port and the alternate UART pin mapping.
const DefaultPi4Config = `# Raspberry Pi 4B boot configuration.
# Interpreted by the VideoCore firmware before the kernel starts.

dtparam=i2c_arm=on
dtparam=i2c_arm_baudrate=400000
dtoverlay=i2c1,pins_44_45

camera_auto_detect=1
display_auto_detect=1

dtparam=audio=on
dtoverlay=googlevoicehat-soundcard

arm_64bit=1
disable_overscan=1

[all]
dtoverlay=dwc2,dr_mode=peripheral
enable_uart=1
dtoverlay=uart3,txd3_pin=7,rxd3_pin=29
max_framebuffers=2
`

// MinimalUARTConfig is the bring-up profile used on bench units with
// no peripherals attached.
const MinimalUARTConfig = `arm_64bit=1
enable_uart=1
uart_2ndstage=1
`

// DefaultDocument parses DefaultPi4Config. The default profile is
// well-formed, so lenient Parse is enough.
func DefaultDocument() *Document {
	return Parse([]byte(DefaultPi4Config))
}
