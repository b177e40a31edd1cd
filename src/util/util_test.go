package util

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/containerd/errdefs"
	"github.com/sirupsen/logrus"
	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"
)

func TestEnvDefaults(t *testing.T) {
	t.Setenv(EnvThreads, "8")
	t.Setenv(EnvFeatures, "has_zbb")
	t.Setenv(EnvScratch, "3")
	t.Setenv(EnvVerbose, "true")
	opt := EnvDefaults()
	assert.DeepEqual(t, opt, Options{Threads: 8, Features: "has_zbb", Scratch: 3, Verbose: true})
}

func TestEnvDefaultsUnset(t *testing.T) {
	for _, e1 := range []string{EnvThreads, EnvFeatures, EnvScratch, EnvVerbose} {
		t.Setenv(e1, "")
		os.Unsetenv(e1)
	}
	assert.DeepEqual(t, EnvDefaults(), Options{Threads: 1})
}

// TestEnvDefaultsReload checks that a changed environment is seen by the next call.
func TestEnvDefaultsReload(t *testing.T) {
	t.Setenv(EnvThreads, "8")
	assert.Equal(t, EnvDefaults().Threads, 8)
	t.Setenv(EnvThreads, "3")
	assert.Equal(t, EnvDefaults().Threads, 3)
	os.Unsetenv(EnvThreads)
	assert.Equal(t, EnvDefaults().Threads, 1)
}

func TestMergeTarget(t *testing.T) {
	opt := Options{Src: "u.toml", Threads: 2}
	assert.NilError(t, MergeTarget(&opt, []string{"has_zbb", "has_zba"}, 4))
	assert.Equal(t, opt.Features, "has_zbb,has_zba")
	assert.Equal(t, opt.Scratch, 4)
	assert.Equal(t, opt.Threads, 2)

	opt = Options{Features: "has_zbs", Scratch: 1}
	assert.NilError(t, MergeTarget(&opt, []string{"has_zbb"}, 4))
	assert.Equal(t, opt.Features, "has_zbs")
	assert.Equal(t, opt.Scratch, 1)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		opt Options
		msg string
	}{
		{Options{Src: "u", Threads: 1}, ""},
		{Options{Src: "u", Threads: MaxThreads, Scratch: 7}, ""},
		{Options{Src: "u", Threads: 0}, "thread count"},
		{Options{Src: "u", Threads: MaxThreads + 1}, "thread count"},
		{Options{Src: "u", Threads: 1, Scratch: 8}, "scratch register count"},
		{Options{Src: "u", Threads: 1, Scratch: -1}, "scratch register count"},
		{Options{Threads: 1}, "no unit file"},
	}
	for _, e1 := range tests {
		err := e1.opt.Validate()
		if e1.msg == "" {
			assert.NilError(t, err, e1.opt.String())
			continue
		}
		assert.Check(t, errdefs.IsInvalidArgument(err), e1.opt.String())
		assert.ErrorContains(t, err, e1.msg)
	}
}

func TestReadSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "u.toml")
	assert.NilError(t, os.WriteFile(path, []byte("[target]\n"), 0644))
	b, err := ReadSource(Options{Src: path})
	assert.NilError(t, err)
	assert.Equal(t, string(b), "[target]\n")

	_, err = ReadSource(Options{Src: path + ".missing"})
	assert.Check(t, errdefs.IsNotFound(err))
}

// TestListenWriteOrder closes writers out of order and checks that their output appears in sequence order.
func TestListenWriteOrder(t *testing.T) {
	buf := &bytes.Buffer{}
	out := ListenWrite(2, buf)
	ws := []*Writer{out.NewWriter(0), out.NewWriter(1), out.NewWriter(2), out.NewWriter(3)}
	for i1, e1 := range []string{"zero", "one", "two", "three"} {
		ws[i1].Line(e1)
	}
	ws[1].Write("%d\n", 1)

	wg := sync.WaitGroup{}
	for _, e1 := range []int{3, 1, 2, 0} {
		wg.Add(1)
		go func(w *Writer) {
			defer wg.Done()
			w.Close()
		}(ws[e1])
	}
	wg.Wait()
	assert.NilError(t, out.Close())
	assert.Equal(t, buf.String(), "zero\none\n1\ntwo\nthree\n")
}

func TestListenWriteGap(t *testing.T) {
	buf := &bytes.Buffer{}
	out := ListenWrite(4, buf)
	w := out.NewWriter(2)
	w.Line("two\n")
	w.Close()
	w = out.NewWriter(0)
	w.Line("zero")
	w.Close()
	assert.NilError(t, out.Close())
	assert.Equal(t, buf.String(), "zero\ntwo\n")
}

type failWriter struct{}

func (failWriter) Write([]byte) (int, error) {
	return 0, errors.New("disk full")
}

func TestListenWriteError(t *testing.T) {
	out := ListenWrite(1, failWriter{})
	w := out.NewWriter(0)
	w.Line("lost")
	w.Close()
	assert.ErrorContains(t, out.Close(), "disk full")
}

func TestPerror(t *testing.T) {
	pe := NewPerror(0)
	errA := errors.New("a")
	errB := errors.New("b")
	wg := sync.WaitGroup{}
	for _, e1 := range []error{errA, nil, errB} {
		wg.Add(1)
		go func(err error) {
			defer wg.Done()
			pe.Append(err)
		}(e1)
	}
	wg.Wait()
	pe.Stop()

	assert.Equal(t, pe.Len(), 2)
	assert.Check(t, is.Len(pe.Errors(), 2))
	assert.Check(t, is.ErrorIs(pe.Err(), errA))
	assert.Check(t, is.ErrorIs(pe.Err(), errB))

	empty := NewPerror(4)
	empty.Stop()
	assert.NilError(t, empty.Err())
}

func TestStack(t *testing.T) {
	s := Stack[int]{}
	_, ok := s.Pop()
	assert.Check(t, !ok)
	for i1 := 1; i1 <= 3; i1++ {
		s.Push(i1)
	}
	for _, exp := range []int{3, 2, 1} {
		v, ok := s.Pop()
		assert.Check(t, ok)
		assert.Equal(t, v, exp)
	}
	_, ok = s.Pop()
	assert.Check(t, !ok)
}

func TestLabels(t *testing.T) {
	l := Labels{}
	assert.Equal(t, l.New(LabelJoin), ".Ljoin_0")
	assert.Equal(t, l.New(LabelTaken), ".Ltaken_0")
	assert.Equal(t, l.New(LabelJoin), ".Ljoin_1")
}

func TestSetupLogging(t *testing.T) {
	defer logrus.SetOutput(os.Stderr)
	defer logrus.SetLevel(logrus.InfoLevel)

	buf := &bytes.Buffer{}
	SetupLogging(true, buf)
	assert.Equal(t, logrus.GetLevel(), logrus.DebugLevel)
	assert.Check(t, is.Contains(buf.String(), "logging configured"))

	buf.Reset()
	SetupLogging(false, buf)
	assert.Equal(t, logrus.GetLevel(), logrus.InfoLevel)
	assert.Equal(t, buf.String(), "")
}
