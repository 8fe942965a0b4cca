package conversation

import (
	"github.com/wolfman30/dealer-ai-platform/internal/catalog"
	"github.com/wolfman30/dealer-ai-platform/internal/extraction"
	"github.com/wolfman30/dealer-ai-platform/internal/session"
)

// DefaultPhotoPageSize is how many photos one explicit request sends.
const DefaultPhotoPageSize = 3

// photoTargetMinScore requires at least one token of the model in the
// customer's own words (user hits weigh 3, bot hits 1).
const photoTargetMinScore = 3

// MediaKind says what the attached URLs are.
type MediaKind string

const (
	MediaNone        MediaKind = ""
	MediaPhotos      MediaKind = "photos"
	MediaDocument    MediaKind = "document"
	MediaLocation    MediaKind = "location"
	MediaUnavailable MediaKind = "unavailable"
)

// Media is the attachment decision for one reply.
type Media struct {
	Kind     MediaKind
	Model    string
	URLs     []string
	Document extraction.DocumentKind
}

// HasAttachments reports whether anything will be sent besides text.
func (m Media) HasAttachments() bool {
	return len(m.URLs) > 0
}

// selectMedia decides what to attach to the reply and advances the photo
// cursor stored on the session.
func selectMedia(sess *session.Session, snap catalog.Snapshot, userText, botText string, pageSize int) Media {
	if pageSize <= 0 {
		pageSize = DefaultPhotoPageSize
	}
	if extraction.IsLocationRequest(userText) {
		return Media{Kind: MediaLocation}
	}

	ask := extraction.Photo(userText)
	continuation := ask == extraction.PhotoAskOne || ask == extraction.PhotoAskPage
	if continuation && sess.PhotoModel == "" {
		ask = extraction.PhotoAskFirst
		continuation = false
	}
	if ask != extraction.PhotoAskNone {
		return selectPhotos(sess, snap, userText, botText, ask, continuation, pageSize)
	}

	if kind, ok := extraction.Document(userText); ok {
		return selectDocument(sess, snap, userText, botText, kind)
	}
	return Media{}
}

func selectPhotos(sess *session.Session, snap catalog.Snapshot, userText, botText string, ask extraction.PhotoAsk, continuation bool, pageSize int) Media {
	locked := sess.LastInterest
	if continuation {
		locked = sess.PhotoModel
	}
	target := resolveTarget(snap, locked, userText, botText)
	if target == "" {
		return Media{Kind: MediaUnavailable}
	}
	item, ok := snap.Find(target)
	if !ok || len(item.PhotoURLs) == 0 {
		return Media{Kind: MediaUnavailable, Model: target}
	}

	if sess.PhotoModel != item.Name() {
		sess.PhotoModel = item.Name()
		sess.PhotoIndex = 0
	}
	count := pageSize
	if ask == extraction.PhotoAskOne {
		count = 1
	}
	if sess.PhotoIndex < 0 || sess.PhotoIndex >= len(item.PhotoURLs) {
		sess.PhotoIndex = 0
	}
	end := min(sess.PhotoIndex+count, len(item.PhotoURLs))
	urls := append([]string(nil), item.PhotoURLs[sess.PhotoIndex:end]...)
	sess.PhotoIndex = end
	return Media{Kind: MediaPhotos, Model: item.Name(), URLs: urls}
}

func selectDocument(sess *session.Session, snap catalog.Snapshot, userText, botText string, kind extraction.DocumentKind) Media {
	target := resolveTarget(snap, sess.LastInterest, userText, botText)
	if target == "" {
		return Media{Kind: MediaUnavailable, Document: kind}
	}
	item, ok := snap.Find(target)
	if !ok {
		return Media{Kind: MediaUnavailable, Document: kind}
	}
	url := item.TechSheetURL
	if kind == extraction.DocumentFinancing {
		url = item.FinancingDocURL
	}
	if url == "" {
		return Media{Kind: MediaUnavailable, Model: item.Name(), Document: kind}
	}
	sess.LastPDFRequestType = string(kind)
	return Media{Kind: MediaDocument, Model: item.Name(), URLs: []string{url}, Document: kind}
}

// resolveTarget picks the catalog item a media request is about: the locked
// model when the message still names it, then the best keyword match, then
// the locked model as a plain continuation.
func resolveTarget(snap catalog.Snapshot, locked, userText, botText string) string {
	if locked != "" && extraction.ModelTokenHits(userText, locked) > 0 {
		if _, ok := snap.Find(locked); ok {
			return locked
		}
	}

	best, bestScore, tied := "", 0, false
	for _, it := range snap.Items {
		score := 3*extraction.ModelTokenHits(userText, it.Name()) + extraction.ModelTokenHits(botText, it.Name())
		switch {
		case score > bestScore:
			best, bestScore, tied = it.Name(), score, false
		case score == bestScore && score > 0 && it.Name() != best:
			tied = true
		}
	}
	if bestScore >= photoTargetMinScore && !tied {
		return best
	}

	if locked != "" {
		if _, ok := snap.Find(locked); ok {
			return locked
		}
	}
	return ""
}
