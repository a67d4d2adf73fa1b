package core

import "testing"

func TestEventRegisterFire(t *testing.T) {
	if !EventInitialize() {
		t.Fatal("event system already initialized")
	}
	defer EventShutdown()

	var got []string
	first := "first"
	second := "second"
	EventRegister(EVENT_CODE_RESIZED, first, func(code SystemEventCode, sender, listener interface{}, data EventContext) bool {
		got = append(got, listener.(string))
		return false
	})
	EventRegister(EVENT_CODE_RESIZED, second, func(code SystemEventCode, sender, listener interface{}, data EventContext) bool {
		got = append(got, listener.(string))
		return data.Data.U32[0] == 0
	})

	if EventRegister(EVENT_CODE_RESIZED, first, func(SystemEventCode, interface{}, interface{}, EventContext) bool { return true }) {
		t.Error("duplicate listener registered")
	}

	ctx := EventContext{}
	ctx.Data.U32[0] = 800
	if EventFire(EVENT_CODE_RESIZED, nil, ctx) {
		t.Error("event should not be handled")
	}
	if len(got) != 2 || got[0] != "first" || got[1] != "second" {
		t.Fatalf("delivery order = %v", got)
	}

	if !EventUnregister(EVENT_CODE_RESIZED, first) {
		t.Fatal("unregister failed")
	}
	if EventUnregister(EVENT_CODE_RESIZED, first) {
		t.Error("unregistered twice")
	}

	got = nil
	if !EventFire(EVENT_CODE_RESIZED, nil, EventContext{}) {
		t.Error("event should be handled by second listener")
	}
	if len(got) != 1 || got[0] != "second" {
		t.Fatalf("delivery after unregister = %v", got)
	}
}

func TestEventFireWithoutInitialize(t *testing.T) {
	if EventFire(EVENT_CODE_APPLICATION_QUIT, nil, EventContext{}) {
		t.Error("fire on uninitialized event system returned true")
	}
}
