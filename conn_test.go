package gspawn_test

import (
	"context"
	"net"
	"testing"

	"github.com/cat2neat/gspawn"
)

func TestBaseConn(t *testing.T) {
	t.Parallel()
	dc := &debugNetConn{}
	bc := gspawn.NewBaseConn(dc)
	// read related
	buf := make([]byte, 4)
	dc.ReadFunc = func(buf []byte) (int, error) {
		copy(buf, smashingStr)
		return len(smashingStr), nil
	}
	n, err := bc.Read(buf)
	if n != 4 || string(buf) != smashingStr || err != nil {
		t.Errorf("gspawn_test: BaseConn.Read expected: 4, nil actual: %d, %+v\n", n, err)
	}
	dc.ReadFunc = func(buf []byte) (int, error) {
		return 0, errTest
	}
	ctx, cancel := context.WithCancel(context.Background())
	bc.SetCancelFunc(cancel)
	n, err = bc.Read(buf)
	if n != 0 || err != errTest {
		t.Errorf("gspawn_test: BaseConn.Read expected: 0, errTest actual: %d, %+v\n", n, err)
	}
	<-ctx.Done() // CancelFunc should be called when error happened
	// write related
	dc.WriteFunc = func(buf []byte) (int, error) {
		return 0, errTest
	}
	ctx, cancel = context.WithCancel(context.Background())
	bc.SetCancelFunc(cancel)
	n, err = bc.Write(buf)
	if n != 0 || err != errTest {
		t.Errorf("gspawn_test: BaseConn.Write expected: 0, errTest actual: %d, %+v\n", n, err)
	}
	<-ctx.Done()
	in, out := bc.Stats()
	if in != 0 || out != 0 {
		t.Errorf("gspawn_test: BaseConn.Stats expected: 0, 0 actual: %d, %d\n", in, out)
	}
	if err = bc.Flush(); err != nil {
		t.Errorf("gspawn_test: BaseConn.Flush expected: nil actual: %+v\n", err)
	}
	if _, err = bc.File(); err != gspawn.ErrNoDescriptor {
		t.Errorf("gspawn_test: BaseConn.File expected: %+v actual: %+v\n", gspawn.ErrNoDescriptor, err)
	}
}

func TestBaseConnFile(t *testing.T) {
	t.Parallel()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()
	go func() {
		c, err := net.Dial("tcp", ln.Addr().String())
		if err == nil {
			defer c.Close()
			c.Read(make([]byte, 1))
		}
	}()
	raw, err := ln.Accept()
	if err != nil {
		t.Fatal(err)
	}
	bc := gspawn.NewBaseConn(raw)
	defer bc.Close()
	f, err := bc.File()
	if err != nil {
		t.Fatalf("gspawn_test: BaseConn.File err: %+v\n", err)
	}
	f.Close()
}

func TestStatsConn(t *testing.T) {
	t.Parallel()
	dc := &debugNetConn{}
	dc.ReadFunc = func(buf []byte) (int, error) {
		return copy(buf, smashingStr), nil
	}
	dc.WriteFunc = func(buf []byte) (int, error) {
		return len(buf), nil
	}
	sc := gspawn.NewStatsConn(gspawn.NewBaseConn(dc))
	sc.Read(make([]byte, 2))
	sc.Write([]byte(smashingStr))
	in, out := sc.Stats()
	if in != 2 || out != 4 {
		t.Errorf("gspawn_test: StatsConn.Stats expected: 2, 4 actual: %d, %d\n", in, out)
	}
}

func TestDebugConn(t *testing.T) {
	t.Parallel()
	dc := &debugNetConn{}
	dc.ReadFunc = func(buf []byte) (int, error) {
		return copy(buf, smashingStr), nil
	}
	dc.WriteFunc = func(buf []byte) (int, error) {
		return len(buf), nil
	}
	c := gspawn.NewDebugConn(gspawn.NewBaseConn(dc))
	c.(*gspawn.DebugConn).Logger = nl
	buf := make([]byte, 4)
	if n, err := c.Read(buf); n != 4 || err != nil {
		t.Errorf("gspawn_test: DebugConn.Read expected: 4, nil actual: %d, %+v\n", n, err)
	}
	if n, err := c.Write(buf); n != 4 || err != nil {
		t.Errorf("gspawn_test: DebugConn.Write expected: 4, nil actual: %d, %+v\n", n, err)
	}
	if err := c.Close(); err != nil || dc.Closed() != 1 {
		t.Errorf("gspawn_test: DebugConn.Close expected: nil, 1 actual: %+v, %d\n", err, dc.Closed())
	}
}
