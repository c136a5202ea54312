// Package input implements the NES controller shift-register protocol.
package input

// Button identifies one of the eight NES controller buttons.
type Button uint8

const (
	ButtonA Button = 1 << iota
	ButtonB
	ButtonSelect
	ButtonStart
	ButtonUp
	ButtonDown
	ButtonLeft
	ButtonRight
)

// Controller is a single NES controller's shift register and strobe latch.
type Controller struct {
	buttons uint8

	shiftRegister uint8
	strobe        bool
}

// New creates a controller with no buttons held.
func New() *Controller {
	return &Controller{}
}

// SetButton sets or clears a single button's held state.
func (c *Controller) SetButton(button Button, pressed bool) {
	if pressed {
		c.buttons |= uint8(button)
	} else {
		c.buttons &^= uint8(button)
	}
}

// SetButtons sets all eight button states at once, in A,B,Select,Start,
// Up,Down,Left,Right order.
func (c *Controller) SetButtons(buttons [8]bool) {
	c.buttons = 0
	order := [8]Button{ButtonA, ButtonB, ButtonSelect, ButtonStart, ButtonUp, ButtonDown, ButtonLeft, ButtonRight}
	for i, pressed := range buttons {
		if pressed {
			c.buttons |= uint8(order[i])
		}
	}
}

// IsPressed reports whether the given button is currently held.
func (c *Controller) IsPressed(button Button) bool {
	return c.buttons&uint8(button) != 0
}

// Write handles a strobe-line write. While strobe is held high the shift
// register continuously reloads from the live button state; on the
// high-to-low transition it latches the state for the upcoming serial read.
func (c *Controller) Write(value uint8) {
	wasStrobe := c.strobe
	c.strobe = value&1 != 0

	if c.strobe {
		c.shiftRegister = c.buttons
	} else if wasStrobe {
		c.shiftRegister = c.buttons
	}
}

// Read shifts out the next button bit. With strobe held high, reads always
// return the A button's live state. Past the eighth bit the register shifts
// in open-bus 1s, matching real controller hardware.
func (c *Controller) Read() uint8 {
	if c.strobe {
		return c.buttons & 1
	}

	result := c.shiftRegister & 1
	c.shiftRegister = c.shiftRegister>>1 | 0x80
	return result
}

// Reset clears all button and shift-register state.
func (c *Controller) Reset() {
	c.buttons = 0
	c.shiftRegister = 0
	c.strobe = false
}

// InputState owns both controller ports.
type InputState struct {
	Controller1 *Controller
	Controller2 *Controller
}

// NewInputState creates an input state with two idle controllers.
func NewInputState() *InputState {
	return &InputState{
		Controller1: New(),
		Controller2: New(),
	}
}

// Reset clears both controllers.
func (is *InputState) Reset() {
	is.Controller1.Reset()
	is.Controller2.Reset()
}

// SetButtons1 sets all button states for controller 1.
func (is *InputState) SetButtons1(buttons [8]bool) {
	is.Controller1.SetButtons(buttons)
}

// SetButtons2 sets all button states for controller 2.
func (is *InputState) SetButtons2(buttons [8]bool) {
	is.Controller2.SetButtons(buttons)
}

// Read serves a CPU-bus read from $4016 (controller 1) or $4017
// (controller 2). Controller 2 always has bit 6 set, matching the open-bus
// behavior real hardware exhibits on that port.
func (is *InputState) Read(address uint16) uint8 {
	switch address {
	case 0x4016:
		return is.Controller1.Read()
	case 0x4017:
		return is.Controller2.Read() | 0x40
	default:
		return 0
	}
}

// Write handles $4016 strobe writes, which hardware broadcasts to both
// controller ports simultaneously.
func (is *InputState) Write(address uint16, value uint8) {
	if address == 0x4016 {
		is.Controller1.Write(value)
		is.Controller2.Write(value)
	}
}
