package pipeline

import (
	"archive/zip"
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nordlys/bugsight/internal/bugreport"
)

const mainDump = `== dumpstate: 2024-03-15 10:23:45
------ SYSTEM PROPERTIES ------
[ro.build.version.release]: [14]
[ro.build.version.sdk]: [34]
[ro.product.model]: [Pixel 6 Pro]
[ro.product.manufacturer]: [Google]
[sys.boot_completed]: [1]
------ SYSTEM LOG (logcat -v threadtime -d *:v) ------
03-15 10:23:40.100  1000  1234  1234 I ActivityManager: Start proc 4321:com.example.app/u0a123
03-15 10:23:45.123  1000  1234  1234 E ActivityManager: ANR in com.example.app (com.example.app/.MainActivity)
------ EVENT LOG (logcat -b events) ------
03-15 10:23:45.200  1000  1234  1234 I am_anr: [0,4321,com.example.app]
------ KERNEL LOG (dmesg) ------
<6>[   12.345678] init: starting service 'zygote'
<3>[   45.123456] lowmemorykiller: Killing 'com.example.cache' (2345), adj 900
------ DUMPSYS (dumpsys) ------
DUMP OF SERVICE meminfo:
Total RAM: 7,947,164K (status normal)
 Free RAM: 1,234,567K (cached)
 Used RAM: 5,000,000K (used)
DUMP OF SERVICE cpuinfo:
  12% 1234/system_server: 8% user + 4% kernel
 61% TOTAL: 45% user + 13% kernel + 3% iowait
------ HAL INTERFACES (lshal) ------
android.hardware.light@2.0::ILights/default alive 777
`

const anrTrace = `----- pid 4321 at 2024-03-15 10:23:45 -----
Cmd line: com.example.app

"main" prio=5 tid=1 Blocked
  | group="main" sysTid=4321 nice=-10 cgrp=default sched=0/0 handle=0x7000
  at com.example.app.MainActivity.heavyWork(MainActivity.java:120)
  at android.os.Handler.dispatchMessage(Handler.java:106)
`

const tombstoneDump = `Build fingerprint: 'google/raven/raven:14/XX/1:user/release-keys'
pid: 9876, tid: 9876, name: composer  >>> /vendor/bin/hw/composer <<<
signal 11 (SIGSEGV), code 1 (SEGV_MAPERR), fault addr 0x0000000000000008

backtrace:
      #00 pc 00000000000846a8  /vendor/lib64/hw/gralloc.so (alloc+120)
`

func buildZip(t *testing.T, files map[string]string) *bytes.Reader {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return bytes.NewReader(buf.Bytes())
}

func fullReport(t *testing.T) *bytes.Reader {
	return buildZip(t, map[string]string{
		"bugreport-raven-2024-03-15.txt":  mainDump,
		"FS/data/anr/anr_2024-03-15":      anrTrace,
		"FS/data/tombstones/tombstone_00": tombstoneDump,
	})
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

type progressRecord struct {
	mu     sync.Mutex
	events []string
}

func (p *progressRecord) record(stage Stage, done bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	suffix := ":start"
	if done {
		suffix = ":done"
	}
	p.events = append(p.events, string(stage)+suffix)
}

func TestRunFullReport(t *testing.T) {
	r := fullReport(t)

	res, err := New(quietLogger()).Run(context.Background(), r, r.Size(), nil)
	require.NoError(t, err)

	assert.Equal(t, "Pixel 6 Pro", res.Metadata.Model)
	assert.Equal(t, 34, res.Metadata.SdkLevel)

	require.NotNil(t, res.LogcatResult)
	assert.NotZero(t, res.LogcatResult.EntryCount)
	assert.NotEmpty(t, res.LogcatResult.Anomalies, "ANR line must surface as an anomaly")

	require.NotNil(t, res.KernelResult)
	assert.NotZero(t, res.KernelResult.EntryCount)

	require.NotNil(t, res.MemInfo)
	assert.Equal(t, int64(7947164), res.MemInfo.TotalRAMKB)
	require.NotNil(t, res.CPUInfo)
	assert.Equal(t, 61.0, res.CPUInfo.TotalPercent)
	require.NotNil(t, res.HALStatus)
	assert.Equal(t, 1, res.HALStatus.ServiceCount)

	assert.Len(t, res.ANRAnalyses, 1)
	assert.Len(t, res.TombstoneAnalyses, 1)

	require.NotNil(t, res.BootStatus)
	assert.True(t, res.BootStatus.BootCompleted)

	assert.NotEmpty(t, res.Insights)
	assert.Greater(t, res.HealthScore.Overall, 0)
	assert.Less(t, res.HealthScore.Overall, 100)
}

func TestRunProgressStages(t *testing.T) {
	r := fullReport(t)
	var prog progressRecord

	_, err := New(quietLogger()).Run(context.Background(), r, r.Size(), prog.record)
	require.NoError(t, err)

	require.GreaterOrEqual(t, len(prog.events), 4)
	assert.Equal(t, "unpack:start", prog.events[0])
	assert.Equal(t, "unpack:done", prog.events[1])
	assert.Equal(t, "aggregate:done", prog.events[len(prog.events)-1])

	seen := map[string]bool{}
	for _, e := range prog.events {
		seen[e] = true
	}
	for _, s := range []Stage{StageLogcat, StageKernel, StageDumpsys, StageTraces, StageTombstones} {
		assert.True(t, seen[string(s)+":start"], "stage %s never started", s)
		assert.True(t, seen[string(s)+":done"], "stage %s never finished", s)
	}
}

func TestRunManufacturerResolver(t *testing.T) {
	dump := strings.Replace(mainDump,
		"android.hardware.light@2.0::ILights/default alive 777",
		"vendor.acme.hardware.widget@1.0::IWidget/default alive 555", 1)
	dump = strings.Replace(dump, "[ro.product.manufacturer]: [Google]", "[ro.product.manufacturer]: [ACME Corp.]", 1)
	r := buildZip(t, map[string]string{"bugreport.txt": dump})

	p := New(quietLogger())
	p.SetManufacturerResolver(func(m string) string {
		if m == "ACME Corp." {
			return "acme"
		}
		return m
	})

	res, err := p.Run(context.Background(), r, r.Size(), nil)
	require.NoError(t, err)
	require.Len(t, res.HALStatus.Families, 1)
	assert.True(t, res.HALStatus.Families[0].IsOem, "resolved manufacturer must mark the family as OEM")
}

func TestRunNoMainText(t *testing.T) {
	r := buildZip(t, map[string]string{"notes.txt": "nothing"})
	_, err := New(quietLogger()).Run(context.Background(), r, r.Size(), nil)
	assert.ErrorIs(t, err, bugreport.ErrNoMainSection)
}

func TestRunCancelledContext(t *testing.T) {
	r := fullReport(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(quietLogger()).Run(ctx, r, r.Size(), nil)
	assert.ErrorIs(t, err, context.Canceled)
}
