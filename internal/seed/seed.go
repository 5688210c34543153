package seed

import (
	"fmt"
	"log"

	"ripple/internal/models"

	"gorm.io/gorm"
)

// Options configuration for the seeder.
type Options struct {
	NumUsers    int
	NumPosts    int
	ShouldClean bool

	// MaxDays spreads generated created_at timestamps over this many days.
	MaxDays int
	// SkipBcrypt stores plain passwords; only for fast local iteration.
	SkipBcrypt bool
	// DryRun logs what would be created without writing to the database.
	DryRun bool
}

// Seed populates the database with demo users, a follow mesh, posts with
// comments and likes, a handful of conversations, and notifications.
func Seed(db *gorm.DB, opts Options) error {
	log.Printf("Starting database seeding with %d users and %d posts...", opts.NumUsers, opts.NumPosts)

	if opts.ShouldClean {
		if err := clearData(db); err != nil {
			log.Println("Warning: could not clear all existing data, continuing anyway...")
		}
	}

	f := NewFactory(db, opts)

	users, err := createUsers(f, opts.NumUsers)
	if err != nil {
		return fmt.Errorf("failed to create users: %w", err)
	}
	log.Printf("%d users created", len(users))

	if err := createFollowMesh(f, users); err != nil {
		return fmt.Errorf("failed to create follow mesh: %w", err)
	}
	log.Println("follow mesh created")

	posts, err := createPosts(f, users, opts.NumPosts)
	if err != nil {
		return fmt.Errorf("failed to create posts: %w", err)
	}
	log.Printf("%d posts created", len(posts))

	if !opts.DryRun {
		if err := createEngagement(f, users, posts); err != nil {
			return fmt.Errorf("failed to create engagement: %w", err)
		}
		log.Println("likes, comments, and notifications created")

		if err := createConversations(f, users); err != nil {
			return fmt.Errorf("failed to create conversations: %w", err)
		}
		log.Println("conversations created")
	}

	log.Println("Database seeding completed successfully")
	return nil
}

func clearData(db *gorm.DB) error {
	log.Println("Clearing existing data...")
	sql := `TRUNCATE TABLE notifications, message_reads, messages, conversation_participants,
		conversations, bookmarks, likes, posts, user_blocks, follows, users
		RESTART IDENTITY CASCADE;`
	return db.Exec(sql).Error
}

func createUsers(f *Factory, count int) ([]*models.User, error) {
	users := make([]*models.User, 0, count)

	// Always include a few fixed accounts so logins are predictable in dev.
	if count >= 3 {
		for _, handle := range []string{"alice", "bob", "test"} {
			handle := handle
			user, err := f.CreateUser(func(u *models.User) {
				u.Username = handle
				u.Email = fmt.Sprintf("%s@example.com", handle)
				u.Bio = "One of the first accounts here."
				u.Avatar = fmt.Sprintf("https://i.pravatar.cc/150?u=%s", handle)
			})
			if err != nil {
				continue
			}
			users = append(users, user)
		}
	}

	for i := len(users); i < count; i++ {
		user, err := f.CreateUser()
		if err != nil {
			log.Printf("Failed to create user: %v", err)
			continue
		}
		users = append(users, user)

		if i > 0 && i%100 == 0 {
			log.Printf("Created %d users...", i)
		}
	}

	return users, nil
}

// createFollowMesh gives each user a random set of follows so feeds have
// content. Mutual pairs happen naturally and exercise the mutual-only
// message preference paths.
func createFollowMesh(f *Factory, users []*models.User) error {
	if f.opts.DryRun || len(users) < 2 {
		return nil
	}
	for _, follower := range users {
		n := f.rnd.Intn(len(users)/2 + 1)
		for j := 0; j < n; j++ {
			target := users[f.rnd.Intn(len(users))]
			if target.ID == follower.ID {
				continue
			}
			// Unique index makes duplicate edges a no-op failure.
			_ = f.CreateFollow(follower, target)
		}
	}
	return nil
}

func createPosts(f *Factory, users []*models.User, count int) ([]*models.Post, error) {
	if len(users) == 0 {
		return nil, nil
	}

	posts := make([]*models.Post, 0, count)
	batch := make([]*models.Post, 0, 100)
	for i := 0; i < count; i++ {
		owner := users[f.rnd.Intn(len(users))]
		batch = append(batch, f.BuildPost(owner))

		if len(batch) == cap(batch) {
			if err := f.CreatePostsBatch(batch); err != nil {
				return nil, err
			}
			posts = append(posts, batch...)
			batch = batch[:0]
			log.Printf("Created %d posts...", len(posts))
		}
	}
	if err := f.CreatePostsBatch(batch); err != nil {
		return nil, err
	}
	posts = append(posts, batch...)

	return posts, nil
}

// createEngagement sprinkles likes and comments over the seeded posts and
// records the matching notifications, then refreshes the derived counters.
func createEngagement(f *Factory, users []*models.User, posts []*models.Post) error {
	if len(users) == 0 || len(posts) == 0 {
		return nil
	}

	for _, post := range posts {
		likers := f.rnd.Intn(6)
		for j := 0; j < likers; j++ {
			user := users[f.rnd.Intn(len(users))]
			if user.ID == post.OwnerID {
				continue
			}
			if err := f.CreateLike(user, post); err != nil {
				continue
			}
			_, _ = f.CreateNotification(
				&models.User{ID: post.OwnerID}, user,
				models.NotificationLike,
				fmt.Sprintf("%s liked your post", user.Username))
		}

		if f.rnd.Float32() < 0.3 {
			author := users[f.rnd.Intn(len(users))]
			if _, err := f.CreateComment(author, post); err != nil {
				continue
			}
			if author.ID != post.OwnerID {
				_, _ = f.CreateNotification(
					&models.User{ID: post.OwnerID}, author,
					models.NotificationComment,
					fmt.Sprintf("%s commented on your post", author.Username))
			}
		}

		if err := refreshStats(f.db, post.ID); err != nil {
			return err
		}
	}
	return nil
}

func refreshStats(db *gorm.DB, postID uint) error {
	return db.Exec(`
		UPDATE posts SET
			stat_like_count = (SELECT COUNT(*) FROM likes WHERE post_id = ?),
			stat_comment_count = (SELECT COUNT(*) FROM posts p WHERE p.parent_post_id = ?),
			stat_repost_count = (SELECT COUNT(*) FROM posts p WHERE p.original_post_id = ?)
		WHERE id = ?`, postID, postID, postID, postID).Error
}

// createConversations opens a handful of 1:1 threads with short message
// histories so the chat UI has content on first login.
func createConversations(f *Factory, users []*models.User) error {
	if len(users) < 2 {
		return nil
	}

	pairs := len(users) / 2
	if pairs > 20 {
		pairs = 20
	}
	seen := make(map[string]bool)
	for i := 0; i < pairs; i++ {
		a := users[f.rnd.Intn(len(users))]
		b := users[f.rnd.Intn(len(users))]
		if a.ID == b.ID {
			continue
		}
		key := models.ConversationPairKey(a.ID, b.ID)
		if seen[key] {
			continue
		}
		seen[key] = true

		conv, err := f.CreateConversation(a, b)
		if err != nil {
			continue
		}
		msgs := f.rnd.Intn(10) + 1
		for j := 0; j < msgs; j++ {
			sender := a
			if j%2 == 1 {
				sender = b
			}
			if _, err := f.CreateMessage(conv, sender); err != nil {
				break
			}
		}
	}
	return nil
}
