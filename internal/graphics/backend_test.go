package graphics

import "testing"

func TestCreateBackendHeadless(t *testing.T) {
	b, err := CreateBackend(BackendHeadless)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !b.IsHeadless() {
		t.Fatal("expected headless backend to report IsHeadless")
	}
	if b.GetName() != "Headless" {
		t.Fatalf("expected name Headless, got %s", b.GetName())
	}
}

func TestHeadlessBackendRequiresInitializeBeforeCreateWindow(t *testing.T) {
	b := NewHeadlessBackend()
	if _, err := b.CreateWindow("test", 256, 240); err == nil {
		t.Fatal("expected error creating window before Initialize")
	}

	if err := b.Initialize(Config{Headless: true}); err != nil {
		t.Fatalf("unexpected Initialize error: %v", err)
	}
	win, err := b.CreateWindow("test", 256, 240)
	if err != nil {
		t.Fatalf("unexpected CreateWindow error: %v", err)
	}
	if win.ShouldClose() {
		t.Fatal("expected freshly created window to not request close")
	}
}

func TestHeadlessBackendDoubleInitializeErrors(t *testing.T) {
	b := NewHeadlessBackend()
	if err := b.Initialize(Config{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := b.Initialize(Config{}); err == nil {
		t.Fatal("expected error on second Initialize")
	}
}

func TestHeadlessWindowTracksFrameCount(t *testing.T) {
	b := NewHeadlessBackend()
	b.Initialize(Config{Headless: true})
	w, _ := b.CreateWindow("test", 256, 240)
	hw := w.(*HeadlessWindow)

	var frame [256 * 240]uint32
	frame[0] = 0xFF0000

	for i := 0; i < 3; i++ {
		if err := w.RenderFrame(frame); err != nil {
			t.Fatalf("unexpected RenderFrame error: %v", err)
		}
	}

	if hw.GetFrameCount() != 3 {
		t.Fatalf("expected frame count 3, got %d", hw.GetFrameCount())
	}
	if hw.LastFrame()[0] != 0xFF0000 {
		t.Fatal("expected LastFrame to reflect the most recent render")
	}
}

func TestHeadlessWindowPollEventsIsAlwaysEmpty(t *testing.T) {
	b := NewHeadlessBackend()
	b.Initialize(Config{Headless: true})
	w, _ := b.CreateWindow("test", 256, 240)

	if events := w.PollEvents(); events != nil {
		t.Fatalf("expected nil events from headless window, got %v", events)
	}
}

func TestHeadlessWindowCleanupSetsShouldClose(t *testing.T) {
	b := NewHeadlessBackend()
	b.Initialize(Config{Headless: true})
	w, _ := b.CreateWindow("test", 256, 240)

	w.Cleanup()
	if !w.ShouldClose() {
		t.Fatal("expected ShouldClose true after Cleanup")
	}
}
