//go:build tinygo && baremetal

package hal

import (
	"machine"
)

type tinyGoHAL struct {
	logger *uartLogger
	led    *pinLED
	fb     Framebuffer
	t      *tinyGoTime
}

// New returns a Pico 2 (RP2350) HAL implementation.
//
// UART: UART0 on GP0 (TX) / GP1 (RX), 115200 8N1.
func New() HAL {
	uart := machine.UART0
	uart.Configure(machine.UARTConfig{
		BaudRate: 115200,
		TX:       machine.GP0,
		RX:       machine.GP1,
	})

	ledPin := machine.LED
	ledPin.Configure(machine.PinConfig{Mode: machine.PinOutput})

	return &tinyGoHAL{
		logger: &uartLogger{uart: uart},
		led:    &pinLED{pin: ledPin},
		fb:     &stubFramebuffer{w: 320, h: 320, format: PixelFormatRGB565},
		t:      newTinyGoTime(1000),
	}
}

func (h *tinyGoHAL) Name() string     { return "pico" }
func (h *tinyGoHAL) Logger() Logger   { return h.logger }
func (h *tinyGoHAL) LED() LED         { return h.led }
func (h *tinyGoHAL) Display() Display { return tinyGoDisplay{fb: h.fb} }
func (h *tinyGoHAL) Time() Time       { return h.t }

type tinyGoDisplay struct {
	fb Framebuffer
}

func (d tinyGoDisplay) Framebuffer() Framebuffer { return d.fb }

type uartLogger struct {
	uart *machine.UART
}

func (l *uartLogger) WriteLineString(s string) {
	for i := 0; i < len(s); i++ {
		l.uart.WriteByte(s[i])
	}
	l.uart.WriteByte('\r')
	l.uart.WriteByte('\n')
}

func (l *uartLogger) WriteLineBytes(b []byte) {
	l.uart.Write(b)
	l.uart.WriteByte('\r')
	l.uart.WriteByte('\n')
}

type pinLED struct {
	pin machine.Pin
}

func (l *pinLED) High() { l.pin.High() }
func (l *pinLED) Low()  { l.pin.Low() }
