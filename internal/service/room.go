package service

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"crash_aim/internal/game"
	"crash_aim/internal/models"
	"crash_aim/internal/repository"
)

// 提交與彙總的時間容忍：提交時間戳必須落在
// [startAt − resultWindow, endAt + resultWindow]，
// 到期後再等 summaryGrace 才強制產生彙總，遲到的提交不會被鎖在自己的彙總之外
const (
	resultWindow = 10 * time.Second
	summaryGrace = 10 * time.Second

	// 開始後的短暫鎖定窗口，擋下連點造成的重複開局
	startLockSlack = 500 * time.Millisecond
)

var (
	ErrNotConfigured     = errors.New("伺服器尚未設定回合簽名密鑰")
	ErrRoomNotFound      = errors.New("房間不存在")
	ErrNotHost           = errors.New("只有主持人可以開始回合")
	ErrNotEnoughPlayers  = errors.New("房間內至少需要 2 位玩家")
	ErrNotAllReady       = errors.New("所有玩家都準備好才能開始")
	ErrRoundLocked       = errors.New("回合剛開始過，稍後再試")
	ErrInvalidSignature  = errors.New("回合簽名無效")
	ErrOutsideTimeWindow = errors.New("提交時間不在回合窗口內")
	ErrInvalidResult     = errors.New("無效的停止結果")
	ErrRoundNotFound     = errors.New("回合不存在")
)

// HostName 回傳成員名單中字典序最小的顯示名稱
// 主持人永遠從當前名單重新推導，不做快取，成員異動後不會殘留過期主持人
func HostName(names []string) string {
	if len(names) == 0 {
		return ""
	}
	sorted := make([]string, len(names))
	copy(sorted, names)
	sort.Strings(sorted)
	return sorted[0]
}

// ResultInput 是玩家提交的停止結果
type ResultInput struct {
	UserID    string  `json:"userId" binding:"required"`
	Name      string  `json:"name"`
	Value     float64 `json:"value"`
	Crashed   bool    `json:"crashed"`
	Timestamp int64   `json:"ts"` // 停止動作的 epoch 毫秒，0 表示以伺服器時間為準
}

// SummaryEntry 是彙總中的一列，diff 越小名次越前
type SummaryEntry struct {
	UserID  string  `json:"userId"`
	Name    string  `json:"name"`
	Value   float64 `json:"value"`
	Diff    float64 `json:"diff"`
	Score   int     `json:"score"`
	Crashed bool    `json:"crashed"`
}

// Summary 是一個回合的最終排名
type Summary struct {
	RoundID string         `json:"roundId"`
	Target  float64        `json:"target"`
	Results []SummaryEntry `json:"results"`
}

// RoomSnapshot 是房間目前狀態的唯讀視圖
type RoomSnapshot struct {
	Room    string   `json:"room"`
	Members []Member `json:"members"`
	Ready   []string `json:"ready"` // 已準備成員的 userID
	Host    string   `json:"host"`  // 主持人顯示名稱
}

// Broadcaster 抽象房間廣播，由 Hub 實作
type Broadcaster interface {
	BroadcastToRoom(room string, message *models.Message)
}

// roomState 是房間的暫態協調狀態，只存在記憶體，不落庫
type roomState struct {
	members   map[string]string // userID -> 顯示名稱
	ready     map[string]bool
	lockUntil time.Time
	round     *game.SignedParams // 進行中的回合
	expected  map[string]bool    // 回合開始當下在場的成員
	reported  map[string]bool
	cancel    context.CancelFunc // 到期監看的取消
}

// RoomService 負責回合協調：成員與準備狀態、主持人授權、
// 回合的產生簽名與廣播、結果收集驗證與彙總
type RoomService struct {
	mu        sync.Mutex
	rooms     map[string]*roomState
	roundRepo repository.RoundRepository
	bcast     Broadcaster
	signer    *game.Signer // 密鑰未設定時為 nil
	generator *game.Generator
	clock     clockwork.Clock
}

func NewRoomService(roundRepo repository.RoundRepository, bcast Broadcaster, signer *game.Signer, generator *game.Generator, clock clockwork.Clock) *RoomService {
	return &RoomService{
		rooms:     make(map[string]*roomState),
		roundRepo: roundRepo,
		bcast:     bcast,
		signer:    signer,
		generator: generator,
		clock:     clock,
	}
}

// MemberAdded 實作 PresenceHandler，登記新成員
func (s *RoomService) MemberAdded(room, userID, name string) {
	s.mu.Lock()
	st := s.ensureRoomLocked(room)
	st.members[userID] = name
	s.mu.Unlock()
}

// MemberRemoved 實作 PresenceHandler
// 成員離開同時撤銷其準備旗標，主持人身分下次讀取時自然重推
func (s *RoomService) MemberRemoved(room, userID, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.rooms[room]
	if !ok {
		return
	}
	delete(st.members, userID)
	delete(st.ready, userID)
	if len(st.members) == 0 {
		if st.cancel != nil {
			st.cancel()
		}
		delete(s.rooms, room)
	}
}

// ClientEvent 實作 PresenceHandler，處理成員發出的事件
func (s *RoomService) ClientEvent(client *Client, msg *models.Message) {
	switch msg.Event {
	case models.EventClientReady:
		var payload struct {
			Ready bool `json:"ready"`
		}
		if err := json.Unmarshal(msg.Data, &payload); err != nil {
			log.Printf("client-ready parse error from %s: %v", client.UserID, err)
			return
		}
		s.SetReady(client.Room, client.UserID, payload.Ready)
	case models.EventClientResult:
		// 同儕轉發已由 Hub 完成，權威路徑是 HTTP 提交
	default:
		log.Printf("unhandled client event %q from %s", msg.Event, client.UserID)
	}
}

// SetReady 更新成員的準備旗標
func (s *RoomService) SetReady(room, userID string, ready bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.rooms[room]
	if !ok {
		return
	}
	if _, member := st.members[userID]; !member {
		return
	}
	if ready {
		st.ready[userID] = true
	} else {
		delete(st.ready, userID)
	}
}

// Snapshot 回傳房間目前的成員、準備狀態與主持人
func (s *RoomService) Snapshot(room string) (*RoomSnapshot, error) {
	room = game.NormalizeRoom(room)
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.rooms[room]
	if !ok {
		return nil, ErrRoomNotFound
	}

	snap := &RoomSnapshot{Room: room, Host: HostName(namesLocked(st))}
	for id, name := range st.members {
		snap.Members = append(snap.Members, Member{UserID: id, Name: name})
	}
	sort.Slice(snap.Members, func(i, j int) bool { return snap.Members[i].Name < snap.Members[j].Name })
	for id := range st.ready {
		snap.Ready = append(snap.Ready, id)
	}
	sort.Strings(snap.Ready)
	return snap, nil
}

// SignParams 對主持人自行產生的參數簽名（簽名本身無狀態）
func (s *RoomService) SignParams(p game.Params) (string, error) {
	if s.signer == nil {
		return "", ErrNotConfigured
	}
	p = p.Canonical()
	if p.Room == "" {
		return "", game.ErrRoomRequired
	}
	if err := p.Validate(); err != nil {
		return "", err
	}
	return s.signer.Sign(p)
}

// StartRound 由主持人觸發：產生參數、簽名、落庫並向全房間廣播
// 授權檢查全部在接觸簽名器之前完成，被拒絕的呼叫不會產生任何副作用
func (s *RoomService) StartRound(room, userID string, startDelay time.Duration) (*game.SignedParams, error) {
	if s.signer == nil {
		return nil, ErrNotConfigured
	}
	room = game.NormalizeRoom(room)

	s.mu.Lock()
	st, ok := s.rooms[room]
	if !ok {
		s.mu.Unlock()
		return nil, ErrRoomNotFound
	}
	name, member := st.members[userID]
	if !member || name != HostName(namesLocked(st)) {
		s.mu.Unlock()
		return nil, ErrNotHost
	}
	if len(st.members) < 2 {
		s.mu.Unlock()
		return nil, ErrNotEnoughPlayers
	}
	if !allReadyLocked(st) {
		s.mu.Unlock()
		return nil, ErrNotAllReady
	}
	now := s.clock.Now()
	if now.Before(st.lockUntil) {
		s.mu.Unlock()
		return nil, ErrRoundLocked
	}
	// 先佔住鎖定窗口，簽名落庫期間的重複請求直接被擋
	st.lockUntil = now.Add(2 * time.Second)
	expected := make(map[string]bool, len(st.members))
	for id := range st.members {
		expected[id] = true
	}
	s.mu.Unlock()

	signed, err := s.createRound(room, startDelay)
	if err != nil {
		s.mu.Lock()
		st.lockUntil = time.Time{}
		s.mu.Unlock()
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	if st.cancel != nil {
		// 新回合取代進行中的舊回合，先前的監看全部作廢
		st.cancel()
	}
	st.round = signed
	st.expected = expected
	st.reported = make(map[string]bool)
	st.lockUntil = time.UnixMilli(signed.StartAt).Add(startLockSlack)
	st.cancel = cancel
	// 回合一旦開始，準備旗標立即歸零
	st.ready = make(map[string]bool)
	s.mu.Unlock()

	if msg, err := models.NewEventMessage(models.EventRoundStart, room, signed); err == nil {
		s.bcast.BroadcastToRoom(room, msg)
	}

	s.watchRound(ctx, room, signed.Params)
	return signed, nil
}

// CreateRound 是不經房間授權的伺服器端開局，
// 給完全不信任客戶端產生參數的部署使用：產生、簽名、落庫、廣播一次完成
func (s *RoomService) CreateRound(room string, startDelay time.Duration) (*game.SignedParams, error) {
	if s.signer == nil {
		return nil, ErrNotConfigured
	}
	room = game.NormalizeRoom(room)
	if room == "" {
		return nil, game.ErrRoomRequired
	}

	signed, err := s.createRound(room, startDelay)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	st := s.ensureRoomLocked(room)
	if st.cancel != nil {
		st.cancel()
	}
	st.round = signed
	st.expected = nil // 參與名單未知，只能靠到期計時器收束
	st.reported = make(map[string]bool)
	st.cancel = cancel
	st.ready = make(map[string]bool)
	s.mu.Unlock()

	if msg, err := models.NewEventMessage(models.EventRoundStart, room, signed); err == nil {
		s.bcast.BroadcastToRoom(room, msg)
	}

	s.watchRound(ctx, room, signed.Params)
	return signed, nil
}

func (s *RoomService) createRound(room string, startDelay time.Duration) (*game.SignedParams, error) {
	p, err := s.generator.NewRound(room, startDelay)
	if err != nil {
		return nil, err
	}
	sig, err := s.signer.Sign(p)
	if err != nil {
		return nil, err
	}

	round := &models.Round{
		RoundID: p.RoundID(),
		Room:    p.Room,
		StartAt: time.UnixMilli(p.StartAt),
		EndAt:   time.UnixMilli(p.EndAt()),
		MaxTime: p.MaxTime,
		MaxMult: p.MaxMult,
		Target:  p.Target,
		Status:  models.RoundStatusRunning,
	}
	if err := s.roundRepo.Create(round); err != nil {
		return nil, err
	}
	return &game.SignedParams{Params: p, Sig: sig}, nil
}

// watchRound 用引擎重放同一條時間線，到期後寬限 summaryGrace 再強制彙總
// 缺席玩家的結果不會被等待，彙總單純略過他們
func (s *RoomService) watchRound(ctx context.Context, room string, p game.Params) {
	roundID := p.RoundID()
	engine := game.NewEngine(s.clock, nil, func(game.Result) {
		s.clock.AfterFunc(summaryGrace, func() {
			select {
			case <-ctx.Done():
				return // 新回合已取代，過期的彙總不再觸發
			default:
			}
			if _, err := s.Summarize(room, roundID); err != nil {
				log.Printf("forced summary for round %s failed: %v", roundID, err)
			}
		})
	})
	if err := engine.Start(p); err != nil {
		log.Printf("round watcher start failed: %v", err)
		return
	}
	go engine.Run(ctx)
}

// SubmitResult 是權威的防作弊入口：重驗簽名、時間窗口與數值範圍，
// 分數一律由伺服器重算，不採信客戶端回報
func (s *RoomService) SubmitResult(room string, input ResultInput, round game.SignedParams) error {
	if s.signer == nil {
		return ErrNotConfigured
	}
	room = game.NormalizeRoom(room)
	if room == "" || input.UserID == "" {
		return ErrInvalidResult
	}

	p := round.Params.Canonical()
	if !s.signer.Verify(p, round.Sig) {
		log.Printf("rejected result for round %s: invalid signature (user %s)", p.RoundID(), input.UserID)
		return ErrInvalidSignature
	}

	windowMs := resultWindow.Milliseconds()
	now := s.clock.Now().UnixMilli()
	ts := input.Timestamp
	if ts == 0 {
		ts = now
	}
	if now < p.StartAt-windowMs || now > p.EndAt()+windowMs ||
		ts < p.StartAt-windowMs || ts > p.EndAt()+windowMs {
		log.Printf("rejected result for round %s: outside time window (user %s)", p.RoundID(), input.UserID)
		return ErrOutsideTimeWindow
	}

	if input.Value < 1.0 || input.Value > p.MaxMult {
		return ErrInvalidResult
	}
	if input.Crashed && input.Value != p.MaxMult {
		// 墜毀的結果只可能是上限值
		return ErrInvalidResult
	}

	name := strings.TrimSpace(input.Name)
	if name == "" {
		name = "Player"
	}
	if len(name) > 32 {
		name = name[:32]
	}

	result := &models.RoundResult{
		RoundID: p.RoundID(),
		UserID:  input.UserID,
		Name:    name,
		Value:   input.Value,
		Diff:    game.RoundDiff(game.Diff(input.Value, p.Target)),
		Score:   game.Score(input.Value, p.Target),
		Crashed: input.Crashed,
		Room:    room,
	}
	if err := s.roundRepo.UpsertResult(result); err != nil {
		return err
	}

	if msg, err := models.NewEventMessage(models.EventPartialResult, room, SummaryEntry{
		UserID:  result.UserID,
		Name:    result.Name,
		Value:   result.Value,
		Diff:    result.Diff,
		Score:   result.Score,
		Crashed: result.Crashed,
	}); err == nil {
		s.bcast.BroadcastToRoom(room, msg)
	}

	// 回合開始時在場的成員都交卷了就立刻彙總，不必等到期
	s.mu.Lock()
	complete := false
	if st, ok := s.rooms[room]; ok && st.round != nil && st.round.RoundID() == p.RoundID() && st.expected != nil {
		if st.expected[input.UserID] {
			st.reported[input.UserID] = true
		}
		complete = true
		for id := range st.expected {
			if !st.reported[id] {
				complete = false
				break
			}
		}
	}
	s.mu.Unlock()

	if complete {
		if _, err := s.Summarize(room, p.RoundID()); err != nil {
			log.Printf("summary after last result failed: %v", err)
		}
	}
	return nil
}

// Summarize 載入回合結果、排序、廣播並將回合標記為結束
// 重複呼叫是冪等的：已結束的回合只回傳彙總，不再廣播
func (s *RoomService) Summarize(room, roundID string) (*Summary, error) {
	room = game.NormalizeRoom(room)

	round, err := s.roundRepo.FindByRoundID(roundID)
	if err != nil {
		return nil, ErrRoundNotFound
	}

	results, err := s.roundRepo.FindResults(roundID, room)
	if err != nil {
		return nil, err
	}

	summary := &Summary{
		RoundID: roundID,
		Target:  round.Target,
		Results: make([]SummaryEntry, 0, len(results)),
	}
	for _, r := range results {
		summary.Results = append(summary.Results, SummaryEntry{
			UserID:  r.UserID,
			Name:    r.Name,
			Value:   r.Value,
			Diff:    r.Diff,
			Score:   r.Score,
			Crashed: r.Crashed,
		})
	}
	// diff 小者在前（離 target 近者勝），diff 相同時分數高者在前
	sort.Slice(summary.Results, func(i, j int) bool {
		if summary.Results[i].Diff != summary.Results[j].Diff {
			return summary.Results[i].Diff < summary.Results[j].Diff
		}
		return summary.Results[i].Score > summary.Results[j].Score
	})

	if round.Status == models.RoundStatusFinished {
		return summary, nil
	}

	if msg, err := models.NewEventMessage(models.EventRoundSummary, room, summary); err == nil {
		s.bcast.BroadcastToRoom(room, msg)
	}
	if err := s.roundRepo.UpdateStatus(roundID, models.RoundStatusFinished); err != nil {
		return nil, err
	}

	// 清掉房間的進行中回合，到期監看一併取消
	s.mu.Lock()
	if st, ok := s.rooms[room]; ok && st.round != nil && st.round.RoundID() == roundID {
		if st.cancel != nil {
			st.cancel()
			st.cancel = nil
		}
		st.round = nil
		st.expected = nil
		st.reported = nil
	}
	s.mu.Unlock()

	return summary, nil
}

func (s *RoomService) ensureRoomLocked(room string) *roomState {
	st, ok := s.rooms[room]
	if !ok {
		st = &roomState{
			members: make(map[string]string),
			ready:   make(map[string]bool),
		}
		s.rooms[room] = st
	}
	return st
}

func namesLocked(st *roomState) []string {
	names := make([]string, 0, len(st.members))
	for _, name := range st.members {
		names = append(names, name)
	}
	return names
}

// allReadyLocked：至少 2 位成員且全員準備才算就緒
// 每次都從當前名單重算，不信任累計的計數
func allReadyLocked(st *roomState) bool {
	if len(st.members) < 2 {
		return false
	}
	for id := range st.members {
		if !st.ready[id] {
			return false
		}
	}
	return true
}
