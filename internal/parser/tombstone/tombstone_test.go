package tombstone

import (
	"strings"
	"testing"
)

const sampleTombstone = `*** *** *** *** *** *** *** *** *** *** *** *** *** *** *** ***
Build fingerprint: 'google/raven/raven:14/AP1A.240505.004/11583682:user/release-keys'
ABI: 'arm64'
Timestamp: 2024-03-15 10:23:45.123456789+0100
pid: 1234, tid: 1250, name: HwBinder:1234_2  >>> /vendor/bin/hw/android.hardware.graphics.composer@2.4-service <<<
signal 11 (SIGSEGV), code 1 (SEGV_MAPERR), fault addr 0x0000000000000008
Abort message: 'composer fence timeout'
    x0  0000000000000000  x1  0000007bd0a3f8c0  x2  0000000000000008  x3  0000000000000001
    x4  0000007bd0a3f900  x5  0000000000000000  x6  0000000000000000  x7  0000000000000000

backtrace:
      #00 pc 00000000000846a8  /vendor/lib64/hw/gralloc.raven.so (allocate_buffer+120) (BuildId: 7a3bc1d2)
      #01 pc 0000000000021f3c  /vendor/lib64/hw/gralloc.raven.so (android::GrallocAllocator::alloc(int)+88)
      #02 pc 00000000000d8b38  /system/lib64/libutils.so (android::Looper::pollInner(int)+184)
`

func TestParse(t *testing.T) {
	ts := Parse(sampleTombstone)

	if ts.Pid != 1234 || ts.Tid != 1250 {
		t.Errorf("pid/tid = %d/%d, want 1234/1250", ts.Pid, ts.Tid)
	}
	if ts.ThreadName != "HwBinder:1234_2" {
		t.Errorf("thread name = %q", ts.ThreadName)
	}
	if ts.ProcessName != "/vendor/bin/hw/android.hardware.graphics.composer@2.4-service" {
		t.Errorf("process name = %q", ts.ProcessName)
	}
	if ts.Signal != 11 || ts.SignalName != "SIGSEGV" || ts.SignalCode != "SEGV_MAPERR" {
		t.Errorf("signal = %d %q %q", ts.Signal, ts.SignalName, ts.SignalCode)
	}
	if ts.FaultAddr != "0x0000000000000008" {
		t.Errorf("fault addr = %q", ts.FaultAddr)
	}
	if ts.AbortMessage != "composer fence timeout" {
		t.Errorf("abort message = %q", ts.AbortMessage)
	}
	if ts.ABI != "arm64" {
		t.Errorf("abi = %q", ts.ABI)
	}
	if !strings.HasPrefix(ts.BuildFingerprint, "google/raven") {
		t.Errorf("fingerprint = %q", ts.BuildFingerprint)
	}
}

func TestParseBacktrace(t *testing.T) {
	ts := Parse(sampleTombstone)

	if len(ts.Backtrace) != 3 {
		t.Fatalf("got %d frames, want 3", len(ts.Backtrace))
	}

	f0 := ts.Backtrace[0]
	if f0.Number != 0 || f0.PC != "00000000000846a8" {
		t.Errorf("frame 0 = %+v", f0)
	}
	if f0.Binary != "/vendor/lib64/hw/gralloc.raven.so" {
		t.Errorf("frame 0 binary = %q", f0.Binary)
	}
	if f0.Function != "allocate_buffer" || f0.Offset != "120" {
		t.Errorf("frame 0 func/offset = %q/%q", f0.Function, f0.Offset)
	}
	if f0.BuildID != "7a3bc1d2" {
		t.Errorf("frame 0 build id = %q", f0.BuildID)
	}

	// C++ symbol with parens and '+': split at the last '+'.
	f1 := ts.Backtrace[1]
	if f1.Function != "android::GrallocAllocator::alloc(int)" || f1.Offset != "88" {
		t.Errorf("frame 1 func/offset = %q/%q", f1.Function, f1.Offset)
	}
}

func TestVendorCrashDetection(t *testing.T) {
	ts := Parse(sampleTombstone)
	if !ts.IsVendorCrash {
		t.Error("IsVendorCrash = false, want true")
	}
	if ts.CrashedInBinary != "/vendor/lib64/hw/gralloc.raven.so" {
		t.Errorf("CrashedInBinary = %q", ts.CrashedInBinary)
	}

	system := strings.ReplaceAll(sampleTombstone, "/vendor/lib64/hw/gralloc.raven.so", "/system/lib64/libgui.so")
	if Parse(system).IsVendorCrash {
		t.Error("system crash classified as vendor")
	}
}

func TestParseRegisters(t *testing.T) {
	ts := Parse(sampleTombstone)
	if ts.Registers["x2"] != "0000000000000008" {
		t.Errorf("x2 = %q, want 0000000000000008", ts.Registers["x2"])
	}
}

func TestParseBatch(t *testing.T) {
	files := map[string]string{
		"tombstone_01":    sampleTombstone,
		"tombstone_01.pb": "\x08\x01binary",
		"tombstone_02":    "   \n  ",
		"tombstone_03":    "some text with no signal and no frames",
	}

	out := ParseBatch(files)
	if len(out) != 1 {
		t.Fatalf("got %d tombstones, want 1", len(out))
	}
	if out[0].Signal != 11 {
		t.Errorf("signal = %d, want 11", out[0].Signal)
	}
}
