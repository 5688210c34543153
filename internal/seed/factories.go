// Package seed provides helpers to create test and demo data for the
// application database. These helpers are intended for development and
// testing only.
package seed

import (
	"fmt"
	"log"
	"math/rand"
	"time"

	"ripple/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Factory builds domain entities and persists them to the database.
// It is a thin helper used by seed presets and tests.
type Factory struct {
	db   *gorm.DB
	opts Options
	rnd  *rand.Rand
	// synthetic ID counter when running in DryRun mode
	nextID uint
}

// NewFactory creates a new Factory bound to the provided Gorm DB.
func NewFactory(db *gorm.DB, opts Options) *Factory {
	gofakeit.Seed(time.Now().UnixNano())
	//nolint:gosec // Weak random number generator is fine for seeding
	return &Factory{
		db:     db,
		opts:   opts,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		nextID: 1000,
	}
}

// CreateUser constructs and persists a sample `models.User`.
// Optional override functions may modify the generated user before saving.
func (f *Factory) CreateUser(overrides ...func(*models.User)) (*models.User, error) {
	user := &models.User{
		Username:          fmt.Sprintf("%s%d", gofakeit.Username(), gofakeit.Number(100, 999)),
		Email:             gofakeit.Email(),
		DisplayName:       gofakeit.Name(),
		Bio:               gofakeit.Sentence(10),
		Avatar:            fmt.Sprintf("https://i.pravatar.cc/150?u=%s", gofakeit.UUID()),
		IsPremium:         f.rnd.Float32() < 0.1,
		MessagePreference: models.MessagePreferenceEveryone,
	}

	// Password handling: allow skipping bcrypt in dev fast mode
	if f.opts.SkipBcrypt {
		user.Password = "password123"
	} else {
		hashedPassword, _ := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
		user.Password = string(hashedPassword)
	}

	for _, override := range overrides {
		override(user)
	}

	if f.opts.DryRun {
		f.nextID++
		user.ID = f.nextID
		log.Printf("[dry-run] CreateUser: %s <%s>", user.Username, user.Email)
		return user, nil
	}

	if err := f.db.Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// BuildPost constructs a post struct without persisting it. Useful for
// batching. Roughly 40% of generated posts carry a media attachment.
func (f *Factory) BuildPost(owner *models.User, overrides ...func(*models.Post)) *models.Post {
	content := gofakeit.Paragraph(1, 2, 8, " ")
	if len(content) > 480 {
		content = content[:480]
	}
	if f.rnd.Float32() < 0.2 {
		content = fmt.Sprintf("%s #%s", content, gofakeit.Word())
	}

	post := &models.Post{
		OwnerID:    owner.ID,
		Content:    content,
		Visibility: models.VisibilityPublic,
	}
	if f.rnd.Float32() < 0.1 {
		post.Visibility = models.VisibilityFollowers
	}
	if f.rnd.Float32() < 0.4 {
		post.Media = []models.MediaItem{{
			URL:  fmt.Sprintf("https://picsum.photos/seed/%s/800/800", gofakeit.UUID()),
			Type: "image",
		}}
	}
	post.Hashtags = models.ExtractHashtags(post.Content)
	post.Mentions = models.ExtractMentions(post.Content)

	// realistic created_at spread
	maxDays := f.opts.MaxDays
	if maxDays <= 0 {
		maxDays = 90
	}
	daysBack := f.rnd.Intn(maxDays)
	hoursBack := f.rnd.Intn(24)
	minsBack := f.rnd.Intn(60)
	post.CreatedAt = time.Now().Add(
		-time.Duration(daysBack)*24*time.Hour -
			time.Duration(hoursBack)*time.Hour -
			time.Duration(minsBack)*time.Minute)
	post.EditableUntil = post.CreatedAt.Add(models.EditWindow)
	post.EditChancesLeft = models.EditChances

	for _, override := range overrides {
		override(post)
	}
	return post
}

// CreatePost constructs and persists a sample post owned by the given user.
func (f *Factory) CreatePost(owner *models.User, overrides ...func(*models.Post)) (*models.Post, error) {
	post := f.BuildPost(owner, overrides...)

	if f.opts.DryRun {
		f.nextID++
		post.ID = f.nextID
		log.Printf("[dry-run] CreatePost: owner=%d len=%d", post.OwnerID, len(post.Content))
		return post, nil
	}

	if err := f.db.Create(post).Error; err != nil {
		return nil, err
	}
	return post, nil
}

// CreatePostsBatch persists multiple posts in a single DB call when possible.
func (f *Factory) CreatePostsBatch(posts []*models.Post) error {
	if len(posts) == 0 {
		return nil
	}
	if f.opts.DryRun {
		for _, p := range posts {
			f.nextID++
			p.ID = f.nextID
		}
		log.Printf("[dry-run] CreatePostsBatch: %d posts (no DB write)", len(posts))
		return nil
	}
	return f.db.Create(&posts).Error
}

// CreateComment persists a comment on the provided post authored by the
// provided user.
func (f *Factory) CreateComment(author *models.User, parent *models.Post, overrides ...func(*models.Post)) (*models.Post, error) {
	comment := &models.Post{
		OwnerID:         author.ID,
		Content:         gofakeit.Sentence(8),
		ParentPostID:    &parent.ID,
		Depth:           parent.Depth + 1,
		Visibility:      parent.Visibility,
		EditChancesLeft: models.EditChances,
	}
	comment.EditableUntil = time.Now().Add(models.EditWindow)

	for _, override := range overrides {
		override(comment)
	}

	if err := f.db.Create(comment).Error; err != nil {
		return nil, err
	}
	return comment, nil
}

// CreateLike persists a like from `user` on `post`.
func (f *Factory) CreateLike(user *models.User, post *models.Post) error {
	like := &models.Like{
		UserID: user.ID,
		PostID: post.ID,
	}
	return f.db.Create(like).Error
}

// CreateFollow persists a follow edge from follower to following.
func (f *Factory) CreateFollow(follower, following *models.User) error {
	follow := &models.Follow{
		FollowerID:  follower.ID,
		FollowingID: following.ID,
	}
	return f.db.Create(follow).Error
}

// CreateConversation persists a 1:1 conversation between two users,
// including both participant rows.
func (f *Factory) CreateConversation(a, b *models.User) (*models.Conversation, error) {
	conv := &models.Conversation{
		PairKey: models.ConversationPairKey(a.ID, b.ID),
	}
	if err := f.db.Create(conv).Error; err != nil {
		return nil, err
	}
	participants := []models.ConversationParticipant{
		{ConversationID: conv.ID, UserID: a.ID},
		{ConversationID: conv.ID, UserID: b.ID},
	}
	if err := f.db.Create(&participants).Error; err != nil {
		return nil, err
	}
	conv.Participants = participants
	return conv, nil
}

// CreateMessage persists a sample message in the provided conversation from
// the provided sender and advances the conversation's last-message pointer.
func (f *Factory) CreateMessage(conversation *models.Conversation, sender *models.User, overrides ...func(*models.Message)) (*models.Message, error) {
	message := &models.Message{
		ConversationID: conversation.ID,
		SenderID:       sender.ID,
		Content:        gofakeit.Sentence(10),
		DeliveryStatus: models.DeliverySent,
	}

	for _, override := range overrides {
		override(message)
	}

	if err := f.db.Create(message).Error; err != nil {
		return nil, err
	}
	if err := f.db.Model(conversation).Update("last_message_id", message.ID).Error; err != nil {
		return nil, err
	}
	return message, nil
}

// CreateNotification persists a notification for the recipient.
func (f *Factory) CreateNotification(recipient, sender *models.User, typ models.NotificationType, message string) (*models.Notification, error) {
	n := &models.Notification{
		RecipientID: recipient.ID,
		SenderID:    &sender.ID,
		Type:        typ,
		Message:     message,
	}
	if err := f.db.Create(n).Error; err != nil {
		return nil, err
	}
	return n, nil
}
