package handoff

import (
	"regexp"
	"strings"
	"sync"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/wolfman30/dealer-ai-platform/internal/leads"
)

// Origin says who authored an outbound message seen on the business number.
type Origin int

const (
	OriginBot Origin = iota
	OriginHuman
)

func (o Origin) String() string {
	if o == OriginHuman {
		return "human"
	}
	return "bot"
}

// Command is a customer-issued override of the engine's automation.
type Command int

const (
	CommandNone Command = iota
	CommandMute
	CommandUnmute
)

const (
	DefaultSilenceDuration = 12 * time.Hour
	DefaultEchoWindow      = 15 * time.Second
	DefaultCapacity        = 5000
	DefaultRecentBotMemory = 20
)

// Config tunes the gate. Zero values take the defaults above.
type Config struct {
	SilenceDuration time.Duration
	EchoWindow      time.Duration
	Capacity        int
	RecentBotMemory int
}

func (c Config) withDefaults() Config {
	if c.SilenceDuration <= 0 {
		c.SilenceDuration = DefaultSilenceDuration
	}
	if c.EchoWindow <= 0 {
		c.EchoWindow = DefaultEchoWindow
	}
	if c.Capacity <= 0 {
		c.Capacity = DefaultCapacity
	}
	if c.RecentBotMemory <= 0 {
		c.RecentBotMemory = DefaultRecentBotMemory
	}
	return c
}

// Status is the automation state of one conversation at a point in time.
type Status struct {
	Muted    bool
	Silenced bool
	Until    time.Time
}

// Active reports whether the engine may answer.
func (s Status) Active() bool {
	return !s.Muted && !s.Silenced
}

// Gate holds the process-lifetime dedup and handoff state. It is safe for
// concurrent use.
type Gate struct {
	cfg      Config
	inbound  *FIFOSet
	leadKeys *FIFOSet
	botIDs   *FIFOSet

	mu       sync.Mutex
	recent   map[string][]string
	lastSend map[string]time.Time
	silenced map[string]time.Time
	muted    map[string]bool
}

func NewGate(cfg Config) *Gate {
	cfg = cfg.withDefaults()
	return &Gate{
		cfg:      cfg,
		inbound:  NewFIFOSet(cfg.Capacity),
		leadKeys: NewFIFOSet(cfg.Capacity),
		botIDs:   NewFIFOSet(cfg.Capacity),
		recent:   make(map[string][]string),
		lastSend: make(map[string]time.Time),
		silenced: make(map[string]time.Time),
		muted:    make(map[string]bool),
	}
}

// SeenInbound records msgID and reports whether it was already delivered.
// Events without an id cannot be deduplicated and always pass.
func (g *Gate) SeenInbound(msgID string) bool {
	msgID = strings.TrimSpace(msgID)
	if msgID == "" {
		return false
	}
	return !g.inbound.Add(msgID)
}

// ClaimLead reserves the lead key for one inbound message. Only the first
// claim for a (conversation, message) pair returns true.
func (g *Gate) ClaimLead(conversationID, msgID string) bool {
	return g.leadKeys.Add(leads.Key(conversationID, msgID))
}

// RecordBotSend remembers an outbound message the engine produced so its echo
// is not mistaken for a human agent.
func (g *Gate) RecordBotSend(conversationID, msgID, text string, at time.Time) {
	if msgID = strings.TrimSpace(msgID); msgID != "" {
		g.botIDs.Add(msgID)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if norm := normalizeEcho(text); norm != "" {
		texts := append(g.recent[conversationID], norm)
		if len(texts) > g.cfg.RecentBotMemory {
			texts = texts[len(texts)-g.cfg.RecentBotMemory:]
		}
		g.recent[conversationID] = texts
	}
	g.lastSend[conversationID] = at
}

// ClassifyEcho decides who wrote an outbound message seen on the business
// number. A known id or an exact recent text is the bot. Otherwise markers the
// engine never writes, or a casual typing style, mean a human. Anything left
// that arrives shortly after the engine's last send is treated as its echo.
func (g *Gate) ClassifyEcho(conversationID, msgID, text string, at time.Time) Origin {
	if msgID = strings.TrimSpace(msgID); msgID != "" && g.botIDs.Contains(msgID) {
		return OriginBot
	}

	norm := normalizeEcho(text)
	g.mu.Lock()
	recent := g.recent[conversationID]
	last, sent := g.lastSend[conversationID]
	g.mu.Unlock()

	for _, t := range recent {
		if norm != "" && t == norm {
			return OriginBot
		}
	}
	if HasHumanMarkers(text) || LooksFreeForm(text) {
		return OriginHuman
	}
	if sent && !at.Before(last) && at.Sub(last) <= g.cfg.EchoWindow {
		return OriginBot
	}
	return OriginHuman
}

// ObserveEcho classifies an echo and silences the conversation when a human
// wrote it. It returns the origin.
func (g *Gate) ObserveEcho(conversationID, msgID, text string, at time.Time) Origin {
	origin := g.ClassifyEcho(conversationID, msgID, text, at)
	if origin == OriginHuman {
		g.Silence(conversationID, at.Add(g.cfg.SilenceDuration))
	}
	return origin
}

// Silence pauses the engine for the conversation until the given time.
func (g *Gate) Silence(conversationID string, until time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if cur, ok := g.silenced[conversationID]; !ok || until.After(cur) {
		g.silenced[conversationID] = until
	}
}

// Mute pauses the engine for the conversation with no expiry.
func (g *Gate) Mute(conversationID string) {
	g.mu.Lock()
	g.muted[conversationID] = true
	g.mu.Unlock()
}

// Unmute clears the mute and any automatic silence.
func (g *Gate) Unmute(conversationID string) {
	g.mu.Lock()
	delete(g.muted, conversationID)
	delete(g.silenced, conversationID)
	g.mu.Unlock()
}

// Status reports the automation state, expiring automatic silence that has
// run out.
func (g *Gate) Status(conversationID string, now time.Time) Status {
	g.mu.Lock()
	defer g.mu.Unlock()
	st := Status{Muted: g.muted[conversationID]}
	if until, ok := g.silenced[conversationID]; ok {
		if now.Before(until) {
			st.Silenced = true
			st.Until = until
		} else {
			delete(g.silenced, conversationID)
		}
	}
	return st
}

var (
	muteCommands   = map[string]struct{}{"/humano": {}, "bot off": {}}
	unmuteCommands = map[string]struct{}{"/bot": {}, "bot on": {}}
)

// ParseCommand recognizes a customer mute or unmute command. The whole message
// must be the command.
func ParseCommand(text string) Command {
	t := strings.ToLower(strings.Join(strings.Fields(text), " "))
	if _, ok := muteCommands[t]; ok {
		return CommandMute
	}
	if _, ok := unmuteCommands[t]; ok {
		return CommandUnmute
	}
	return CommandNone
}

// Phrases a salesperson types that the engine's prompt never produces.
var humanMarkerPattern = regexp.MustCompile(`(?i)(\bsoy\s+\p{L}+\s+(de|del)\s+(la\s+)?(agencia|equipo|ventas|piso)|\ble\s+atiende\b|\bte\s+atiende\b|\bte\s+marco\b|\bte\s+llamo\b|\bahorita\s+te\b|\batte\.?\s|\bsaludos\s+cordiales\b|\bmi\s+compa(ñ|n)er[oa]\b|\bcomo\s+te\s+coment(e|é)\s+por\s+tel)`)

// HasHumanMarkers reports whether text contains phrasing only a person uses.
func HasHumanMarkers(text string) bool {
	return humanMarkerPattern.MatchString(text)
}

var casualAbbrev = regexp.MustCompile(`(?i)(^|\s)(q|xq|pq|tmb|tb|ntp|grax|bn|dnd|xfa|porfa)(\s|$|[?!.,])`)

// LooksFreeForm reports a casual typing style the engine never writes: short
// lowercase text with no closing punctuation, or texting abbreviations.
func LooksFreeForm(text string) bool {
	t := strings.TrimSpace(text)
	if t == "" {
		return false
	}
	if casualAbbrev.MatchString(t) {
		return true
	}
	first, _ := utf8.DecodeRuneInString(t)
	last, _ := utf8.DecodeLastRuneInString(t)
	if unicode.IsLower(first) && !strings.ContainsRune(".!?)", last) && utf8.RuneCountInString(t) <= 80 {
		return true
	}
	return false
}

func normalizeEcho(text string) string {
	return strings.ToLower(strings.Join(strings.Fields(text), " "))
}
