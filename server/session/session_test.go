package session

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"golang.org/x/exp/rand"

	"github.com/mo-shahab/pong3d/server/clock"
	"github.com/mo-shahab/pong3d/server/geom"
	"github.com/mo-shahab/pong3d/server/netsync"
	"github.com/mo-shahab/pong3d/server/paddle"
	"github.com/mo-shahab/pong3d/server/room"
)

var start = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

const frame = 16 * time.Millisecond

type pair struct {
	clk      *clock.Mock
	manager  *room.Manager
	code     string
	hostSvc  *room.Local
	guestSvc *room.Local
	host     *Session
	guest    *Session
}

// newPair seats two sessions in one room and ticks both until they are active
func newPair(t *testing.T, opts Options) *pair {
	t.Helper()
	ctx := context.Background()

	clk := clock.NewMock(start)
	m := room.NewManager(clk, rand.New(rand.NewSource(3)))
	p := &pair{clk: clk, manager: m}

	p.hostSvc = room.NewLocal(m, "ana")
	code, err := p.hostSvc.CreateRoom(ctx)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	p.code = code

	hostOpts := opts
	hostOpts.Service, hostOpts.Code, hostOpts.Clock = p.hostSvc, code, clk
	hostOpts.Rand = rand.New(rand.NewSource(1))
	if p.host, err = New(hostOpts); err != nil {
		t.Fatalf("host session: %v", err)
	}
	if st := p.host.Tick(clk.Now()); st != StateLobby {
		t.Fatalf("host should wait in the lobby, got %v", st)
	}

	p.guestSvc = room.NewLocal(m, "bo")
	if err := p.guestSvc.JoinRoom(ctx, code); err != nil {
		t.Fatalf("join: %v", err)
	}
	guestOpts := opts
	guestOpts.Service, guestOpts.Code, guestOpts.Clock = p.guestSvc, code, clk
	guestOpts.Rand = rand.New(rand.NewSource(2))
	if p.guest, err = New(guestOpts); err != nil {
		t.Fatalf("guest session: %v", err)
	}

	clk.Advance(frame)
	if st := p.host.Tick(clk.Now()); st != StateActive {
		t.Fatalf("host state = %v", st)
	}
	if st := p.guest.Tick(clk.Now()); st != StateActive {
		t.Fatalf("guest state = %v", st)
	}
	return p
}

func TestOfflineSimulatesAgainstAI(t *testing.T) {
	clk := clock.NewMock(start)
	s, err := New(Options{Clock: clk, Rand: rand.New(rand.NewSource(9))})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer s.Close()

	if s.State() != StateActive {
		t.Fatalf("offline session should start active, got %v", s.State())
	}
	if s.Engine().Ball.Velocity == (geom.Vec3{}) {
		t.Fatal("ball was not served")
	}
	if s.Engine().Red.Role != paddle.RoleAI {
		t.Fatalf("red role = %v", s.Engine().Red.Role)
	}

	s.Tick(clk.Now())
	before := s.Engine().Ball.Position
	clk.Advance(frame)
	s.Tick(clk.Now())

	if s.Engine().Ball.Position == before {
		t.Fatal("ball did not move")
	}
	if v := s.View(); v.Role != netsync.RoleOffline || v.Ball != s.Engine().Ball.Position {
		t.Fatalf("unexpected view %+v", v)
	}
}

func TestRolesFollowSeats(t *testing.T) {
	p := newPair(t, Options{})

	if v := p.host.View(); v.Role != netsync.RoleHost || v.Seat != paddle.SeatGreen {
		t.Fatalf("host view: role %v seat %v", v.Role, v.Seat)
	}
	if v := p.guest.View(); v.Role != netsync.RoleGuest || v.Seat != paddle.SeatRed {
		t.Fatalf("guest view: role %v seat %v", v.Role, v.Seat)
	}
	if p.host.Engine().Red.Role != paddle.RoleRemote || p.guest.Engine().Green.Role != paddle.RoleRemote {
		t.Fatal("opponent paddles should be remote")
	}
	players := p.host.View().Players
	if len(players) != 2 {
		t.Fatalf("host sees %d players", len(players))
	}
	for _, pl := range players {
		if !pl.Ready || !pl.Connected {
			t.Fatalf("player %s not ready and connected: %+v", pl.Name, pl)
		}
	}
}

func TestGuestFollowsHostSnapshots(t *testing.T) {
	p := newPair(t, Options{})

	published := p.host.Engine().Ball.Position
	p.host.Engine().Scores.Red = 2

	// the snapshot delivered on subscribe is handled on the next frame
	p.clk.Advance(frame)
	p.guest.Tick(p.clk.Now())

	if got := p.guest.Engine().Ball.Position; got != published {
		t.Fatalf("guest ball = %v, want %v", got, published)
	}
	if g, ok := p.guest.replicator.(*netsync.Guest); !ok || g.Buffered() != 1 {
		t.Fatalf("guest should hold one snapshot")
	}

	// scores travel with the next snapshot and apply at once
	p.host.Tick(p.clk.Now())
	p.clk.Advance(netsync.PublishInterval)
	p.host.Tick(p.clk.Now())
	p.guest.Tick(p.clk.Now())
	if p.guest.Engine().Scores.Red != 2 {
		t.Fatalf("guest scores = %+v", p.guest.Engine().Scores)
	}
}

func TestHostReceivesGuestInput(t *testing.T) {
	p := newPair(t, Options{})

	p.clk.Advance(frame)
	p.host.Tick(p.clk.Now())

	pos, ok := p.host.feed.Latest()
	if !ok {
		t.Fatal("host has no guest input")
	}
	if want := p.guest.Engine().Red.Position; pos != want {
		t.Fatalf("guest paddle = %v, want %v", pos, want)
	}
}

func TestMatchWaitsForReadyGuest(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewMock(start)
	m := room.NewManager(clk, rand.New(rand.NewSource(3)))

	hostSvc := room.NewLocal(m, "ana")
	code, err := hostSvc.CreateRoom(ctx)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	host, err := New(Options{Service: hostSvc, Code: code, Clock: clk, Rand: rand.New(rand.NewSource(1))})
	if err != nil {
		t.Fatalf("host session: %v", err)
	}

	// the guest is seated but has not started its own session yet
	guestSvc := room.NewLocal(m, "bo")
	if err := guestSvc.JoinRoom(ctx, code); err != nil {
		t.Fatalf("join: %v", err)
	}
	var snapshots int
	if _, err := guestSvc.Subscribe(room.KeyGameState, func(room.Update) { snapshots++ }); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	for i := 0; i < 300; i++ {
		clk.Advance(frame)
		if st := host.Tick(clk.Now()); st != StateLobby {
			t.Fatalf("frame %d: host state = %v before the guest was ready", i, st)
		}
	}
	if v := host.View(); v.Role != netsync.RoleHost || v.Seat != paddle.SeatGreen {
		t.Fatalf("role should be assigned in the lobby: %v %v", v.Role, v.Seat)
	}
	if b := host.Engine().Ball; b.Position != (geom.Vec3{}) || b.Velocity != (geom.Vec3{}) {
		t.Fatalf("ball moved before the guest was ready: %v %v", b.Position, b.Velocity)
	}
	if snapshots != 0 {
		t.Fatalf("host published %d snapshots from the lobby", snapshots)
	}

	if err := guestSvc.SetReady(true); err != nil {
		t.Fatalf("ready: %v", err)
	}
	clk.Advance(frame)
	if st := host.Tick(clk.Now()); st != StateActive {
		t.Fatalf("host state = %v after both were ready", st)
	}
	if host.Engine().Ball.Velocity == (geom.Vec3{}) {
		t.Fatal("ball was not served")
	}
	clk.Advance(netsync.PublishInterval)
	host.Tick(clk.Now())
	if snapshots == 0 {
		t.Fatal("host never published once active")
	}
}

func TestGuestAdoptsHostWinScore(t *testing.T) {
	p := newPair(t, Options{})

	// only the host has a score limit
	p.host.Engine().WinScore = 1
	p.host.Engine().Scores.Red = 1

	p.clk.Advance(frame)
	if st := p.host.Tick(p.clk.Now()); st != StateEnded {
		t.Fatalf("host state = %v", st)
	}
	if st := p.guest.Tick(p.clk.Now()); st != StateEnded {
		t.Fatalf("guest state = %v", st)
	}
	if v := p.guest.View(); v.Winner != paddle.SeatRed || v.Scores.Red != 1 {
		t.Fatalf("guest winner %v scores %+v", v.Winner, v.Scores)
	}
	if w := p.guest.Engine().WinScore; w != 1 {
		t.Fatalf("guest win score = %d, want the host's", w)
	}
}

func TestOpponentDropDisconnects(t *testing.T) {
	p := newPair(t, Options{})

	p.guestSvc.Drop()
	p.clk.Advance(frame)

	if st := p.host.Tick(p.clk.Now()); st != StateDisconnected {
		t.Fatalf("host state = %v", st)
	}
	if r := p.host.View().Reason; r != "opponent disconnected" {
		t.Fatalf("reason = %q", r)
	}

	// terminal states stay put
	p.clk.Advance(frame)
	if st := p.host.Tick(p.clk.Now()); st != StateDisconnected {
		t.Fatalf("host left the terminal state: %v", st)
	}
}

func TestOpponentLeaveDisconnects(t *testing.T) {
	p := newPair(t, Options{})

	if err := p.host.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	p.clk.Advance(frame)
	if st := p.guest.Tick(p.clk.Now()); st != StateDisconnected {
		t.Fatalf("guest state = %v", st)
	}
	if r := p.guest.View().Reason; r != "opponent left" {
		t.Fatalf("reason = %q", r)
	}
}

func TestClosedRoomDisconnectsLobby(t *testing.T) {
	clk := clock.NewMock(start)
	m := room.NewManager(clk, rand.New(rand.NewSource(3)))
	svc := room.NewLocal(m, "ana")
	code, err := svc.CreateRoom(context.Background())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	s, err := New(Options{Service: svc, Code: code, Clock: clk})
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	m.Close(code, "lobby timeout")
	if st := s.Tick(clk.Now()); st != StateDisconnected {
		t.Fatalf("state = %v", st)
	}
	if r := s.View().Reason; r != "lobby timeout" {
		t.Fatalf("reason = %q", r)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close after room removal: %v", err)
	}
}

func TestWinScoreEndsMatch(t *testing.T) {
	clk := clock.NewMock(start)
	s, err := New(Options{Clock: clk, Rand: rand.New(rand.NewSource(9)), WinScore: 1})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	s.Tick(clk.Now())

	b := s.Engine().Ball
	b.Position = geom.V(0, 0, 29)
	b.Velocity = geom.V(0, 0, 20)

	clk.Advance(100 * time.Millisecond)
	if st := s.Tick(clk.Now()); st != StateEnded {
		t.Fatalf("state = %v", st)
	}
	v := s.View()
	if v.Winner != paddle.SeatRed || v.Scores.Red != 1 {
		t.Fatalf("winner %v scores %+v", v.Winner, v.Scores)
	}
}

func TestPauseFreezesOfflineMatch(t *testing.T) {
	clk := clock.NewMock(start)
	s, err := New(Options{Clock: clk, Rand: rand.New(rand.NewSource(9))})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	s.Tick(clk.Now())

	if !s.TogglePause() {
		t.Fatal("toggle should pause")
	}
	before := s.Engine().Ball.Position
	for i := 0; i < 10; i++ {
		clk.Advance(frame)
		if st := s.Tick(clk.Now()); st != StateActive {
			t.Fatalf("paused state = %v", st)
		}
	}
	if s.Engine().Ball.Position != before {
		t.Fatal("ball moved while paused")
	}
	if !s.View().Paused {
		t.Fatal("view does not show the pause")
	}

	if s.TogglePause() {
		t.Fatal("toggle should resume")
	}
	b := s.Engine().Ball
	b.Position = geom.Vec3{}
	b.Velocity = geom.V(0, 0, 10)
	clk.Advance(frame)
	s.Tick(clk.Now())
	// dt is one frame, not the time spent paused
	if want := 10 * frame.Seconds(); math.Abs(b.Position.Z-want) > 1e-9 {
		t.Fatalf("z = %v after resume, want %v", b.Position.Z, want)
	}
}

func TestOnlineMatchCannotPause(t *testing.T) {
	p := newPair(t, Options{})
	if p.host.TogglePause() || p.host.Paused() {
		t.Fatal("online sessions should ignore pause")
	}
}

func TestFrameDeltaIsCapped(t *testing.T) {
	clk := clock.NewMock(start)
	s, err := New(Options{Clock: clk, Rand: rand.New(rand.NewSource(9))})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	s.Tick(clk.Now())

	b := s.Engine().Ball
	b.Position = geom.Vec3{}
	b.Velocity = geom.V(0, 0, 10)

	clk.Advance(5 * time.Second)
	s.Tick(clk.Now())
	if z := b.Position.Z; z != 10*MaxFrameDelta {
		t.Fatalf("z = %v after a stall, want %v", z, 10*MaxFrameDelta)
	}
}

// recordingService logs the teardown calls the session makes
type recordingService struct {
	room.Service
	mu    sync.Mutex
	calls []string
}

func (r *recordingService) record(call string) {
	r.mu.Lock()
	r.calls = append(r.calls, call)
	r.mu.Unlock()
}

func (r *recordingService) PlayerID() string { return "me" }

func (r *recordingService) WatchRoster(func(room.Roster)) (func(), error) {
	return func() { r.record("unsubscribe") }, nil
}

func (r *recordingService) SetReady(bool) error { return nil }

func (r *recordingService) Heartbeat() error { return nil }

func (r *recordingService) Leave() error {
	r.record("leave")
	return nil
}

func TestCloseTearsDownInOrder(t *testing.T) {
	svc := &recordingService{}
	s, err := New(Options{Service: svc, TickRate: time.Millisecond})
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	stopped := make(chan State)
	go func() { stopped <- s.Run(context.Background()) }()

	// let the loop spin a few frames before stopping it
	time.Sleep(10 * time.Millisecond)
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	select {
	case st := <-stopped:
		if st != StateLobby {
			t.Fatalf("run returned %v", st)
		}
	case <-time.After(time.Second):
		t.Fatal("run did not stop")
	}

	if err := s.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}

	svc.mu.Lock()
	defer svc.mu.Unlock()
	if len(svc.calls) != 2 || svc.calls[0] != "unsubscribe" || svc.calls[1] != "leave" {
		t.Fatalf("teardown calls = %v", svc.calls)
	}
}
