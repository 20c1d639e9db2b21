package main

import (
	"bufio"
	"flag"
	"fmt"
	"image"
	"io"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"

	"github.com/Jon-Bright/v3dctl/cl"
	"github.com/Jon-Bright/v3dctl/mmio"
	"github.com/Jon-Bright/v3dctl/v3d"
	log "github.com/sirupsen/logrus"
	"golang.org/x/image/bmp"
)

var port = flag.Int("port", 24601, "The port that the server should listen to")
var width = flag.Int("width", 480, "The width of the framebuffer, in pixels")
var height = flag.Int("height", 480, "The height of the framebuffer, in pixels")
var logLevel = flag.String("loglevel", "info", "The log level: one of trace, debug, info, warn, error")

type Server struct {
	sys *system
	l   net.Listener
	// mu serialises use of the GPU between connections.
	mu sync.Mutex
}

func NewServer(port int, sys *system) (*Server, error) {
	l, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, err
	}
	log.Printf("Listening on port %d", port)
	return &Server{sys: sys, l: l}, nil
}

func parseCoords(parms string) (int, int, error) {
	t := strings.Fields(parms)
	if len(t) != 2 {
		return 0, 0, fmt.Errorf("want x and y, got '%s'", parms)
	}
	x, err := strconv.Atoi(t[0])
	if err != nil {
		return 0, 0, err
	}
	y, err := strconv.Atoi(t[1])
	if err != nil {
		return 0, 0, err
	}
	return x, y, nil
}

// runCommand carries out one command, writing any reply lines to w. The
// caller writes the final OK.
func (s *Server) runCommand(cmd, parms string, w *bufio.Writer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sys := s.sys
	switch cmd {
	case "RENDER":
		return sys.scene.Render()
	case "STATUS":
		w.WriteString(sys.v.Status().String())
		return nil
	case "CLOCK":
		hz, err := v3d.ClockRate(sys.hw.t)
		if err != nil {
			return fmt.Errorf("error getting clock rate: %w", err)
		}
		fmt.Fprintf(w, "%d\n", hz)
		return nil
	case "LIST":
		var list []byte
		switch strings.ToUpper(parms) {
		case "BIN":
			list = sys.scene.BinningList()
		case "RENDER":
			list = sys.scene.RenderList()
		default:
			return fmt.Errorf("unknown list '%s', want BIN or RENDER", parms)
		}
		cmds, err := cl.Decode(list)
		for _, c := range cmds {
			w.WriteString(c.String() + "\n")
		}
		return err
	case "PIXEL":
		x, y, err := parseCoords(parms)
		if err != nil {
			return fmt.Errorf("error parsing coordinates: %w", err)
		}
		if !image.Pt(x, y).In(sys.fb.Bounds()) {
			return fmt.Errorf("%d,%d is outside %v", x, y, sys.fb.Bounds())
		}
		p := sys.fb.RGBAAt(x, y)
		fmt.Fprintf(w, "%02x%02x%02x%02x\n", p.R, p.G, p.B, p.A)
		return nil
	case "SNAPSHOT":
		if parms == "" {
			return fmt.Errorf("SNAPSHOT needs a file name")
		}
		f, err := os.Create(parms)
		if err != nil {
			return err
		}
		err = bmp.Encode(f, sys.fb)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return fmt.Errorf("error writing snapshot: %w", err)
		}
		log.WithField("file", parms).Info("Wrote snapshot")
		return nil
	}
	return fmt.Errorf("unknown command: %s", cmd)
}

func (s *Server) handleConnection(c net.Conn) {
	log.Printf("Handling connection from %v", c.RemoteAddr())
	defer c.Close()
	r := bufio.NewReader(c)
	w := bufio.NewWriter(c)
	for {
		l, err := r.ReadString('\n')
		if err == io.EOF {
			log.Printf("EOF for connection %v", c.RemoteAddr())
			return
		}
		if err != nil {
			log.Printf("Error reading string for connection %v: %v", c.RemoteAddr(), err)
			return
		}
		l = strings.TrimSpace(l)
		log.Debugf("Got line '%s'", l)
		t := strings.SplitN(l, " ", 2)
		cmd := strings.ToUpper(t[0])
		parms := ""
		if len(t) > 1 {
			parms = strings.TrimSpace(t[1])
		}
		if cmd == "QUIT" {
			return
		}
		err = s.runCommand(cmd, parms, w)
		if err != nil {
			es := fmt.Sprintf("Error running %s: %v", cmd, err)
			log.Print(es)
			w.WriteString("ERR: " + es + "\n")
			err = w.Flush()
			if err != nil {
				log.Printf("error writing error reply: %v", err)
			}
			return
		}
		w.WriteString("OK\n")
		err = w.Flush()
		if err != nil {
			log.Printf("error writing reply: %v", err)
			return
		}
	}
}

func (s *Server) handleConnections() {
	for {
		conn, err := s.l.Accept()
		if err != nil {
			log.Printf("Error accepting connection: %v", err)
			continue
		}
		go s.handleConnection(conn)
	}
}

func main() {
	flag.Parse()
	level, err := log.ParseLevel(*logLevel)
	if err != nil {
		log.Fatalf("Bad log level: %v", err)
	}
	log.SetLevel(level)

	poll := mmio.Poll{Attempts: *pollAttempts, Timeout: *pollTimeout}
	hw, err := openHardware(*simulate, *transport, poll)
	if err != nil {
		log.Fatalf("Failed opening hardware: %v", err)
	}
	sys, err := boot(hw, *width, *height, poll)
	if err != nil {
		log.Fatalf("Failed booting: %v", err)
	}
	if err := sys.scene.Render(); err != nil {
		log.Fatalf("Failed first render: %v\n%v", err, sys.v.Status())
	}
	log.Printf("First frame rendered at %v", sys.fb.Addr)

	s, err := NewServer(*port, sys)
	if err != nil {
		log.Fatalf("Failed creating server: %v", err)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		s.mu.Lock() // Never unlocked: we're exiting
		if err := powerOff(hw); err != nil {
			log.Fatalf("Failed power-off: %v", err)
		}
		os.Exit(0)
	}()
	s.handleConnections()
}
