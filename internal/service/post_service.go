package service

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"ripple/internal/cache"
	"ripple/internal/models"
	"ripple/internal/repository"
)

// PostService provides post, comment, repost, like, and bookmark business
// logic. Every read path goes through the visibility service so a caller
// never sees content the viewer is not allowed to see.
type PostService struct {
	postRepo   repository.PostRepository
	userRepo   repository.UserRepository
	socialRepo repository.SocialRepository
	visibility *VisibilityService
	notify     *NotificationService
	now        func() time.Time
}

// NewPostService returns a new PostService. notify may be nil.
func NewPostService(
	postRepo repository.PostRepository,
	userRepo repository.UserRepository,
	socialRepo repository.SocialRepository,
	visibility *VisibilityService,
	notify *NotificationService,
) *PostService {
	return &PostService{
		postRepo:   postRepo,
		userRepo:   userRepo,
		socialRepo: socialRepo,
		visibility: visibility,
		notify:     notify,
		now:        time.Now,
	}
}

// CreatePostInput carries the fields for a new top-level post.
type CreatePostInput struct {
	OwnerID    uint
	Content    string
	Media      []models.MediaItem
	Visibility models.PostVisibility
}

// UpdatePostInput carries an edit to an existing post's content.
type UpdatePostInput struct {
	UserID  uint
	PostID  uint
	Content string
}

func (s *PostService) validateContent(owner *models.User, content string, media []models.MediaItem) error {
	policy := models.PolicyFor(owner.Tier())

	if strings.TrimSpace(content) == "" && len(media) == 0 {
		return models.NewValidationError("Post must have content or media")
	}
	if utf8.RuneCountInString(content) > policy.MaxContentLength {
		return models.NewValidationError(
			fmt.Sprintf("Content too long (max %d characters)", policy.MaxContentLength))
	}
	if len(media) > policy.MaxMediaCount {
		return models.NewValidationError(
			fmt.Sprintf("Too many attachments (max %d)", policy.MaxMediaCount))
	}
	for _, m := range media {
		if m.URL == "" {
			return models.NewValidationError("Media attachment is missing a URL")
		}
		switch m.Type {
		case "image", "video", "gif":
		default:
			return models.NewValidationError("Unsupported media type: " + m.Type)
		}
	}
	return nil
}

// CreatePost creates a top-level post for the owner.
func (s *PostService) CreatePost(ctx context.Context, in CreatePostInput) (*PostView, error) {
	owner, err := s.userRepo.GetByID(ctx, in.OwnerID)
	if err != nil {
		return nil, err
	}
	if owner == nil {
		return nil, models.NewNotFoundError("User", in.OwnerID)
	}
	if err := s.validateContent(owner, in.Content, in.Media); err != nil {
		return nil, err
	}

	visibility := in.Visibility
	if visibility == "" {
		visibility = models.VisibilityPublic
	}
	if visibility != models.VisibilityPublic && visibility != models.VisibilityFollowers {
		return nil, models.NewValidationError("Invalid visibility")
	}

	post := &models.Post{
		OwnerID:         in.OwnerID,
		Content:         in.Content,
		Media:           in.Media,
		Hashtags:        models.ExtractHashtags(in.Content),
		Mentions:        models.ExtractMentions(in.Content),
		Visibility:      visibility,
		EditableUntil:   s.now().Add(models.EditWindow),
		EditChancesLeft: models.EditChances,
	}
	if err := s.postRepo.Create(ctx, post); err != nil {
		return nil, err
	}
	post.Owner = owner

	s.notifyMentions(ctx, post)

	return s.visibility.DecoratePost(ctx, in.OwnerID, post)
}

// GetPost returns one post decorated for the viewer. Invisible posts report
// not-found rather than leaking that they exist.
func (s *PostService) GetPost(ctx context.Context, viewerID, postID uint) (*PostView, error) {
	post, err := s.getVisiblePost(ctx, viewerID, postID)
	if err != nil {
		return nil, err
	}
	return s.visibility.DecoratePost(ctx, viewerID, post)
}

func (s *PostService) getVisiblePost(ctx context.Context, viewerID, postID uint) (*models.Post, error) {
	post, err := s.postRepo.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post == nil {
		return nil, models.NewNotFoundError("Post", postID)
	}
	visible, err := s.visibility.CanView(ctx, viewerID, post)
	if err != nil {
		return nil, err
	}
	if !visible {
		return nil, models.NewNotFoundError("Post", postID)
	}
	return post, nil
}

// UpdatePost edits a post's content. Edits are only allowed inside the edit
// window and while chances remain; each successful edit consumes one chance.
func (s *PostService) UpdatePost(ctx context.Context, in UpdatePostInput) (*PostView, error) {
	post, err := s.postRepo.GetByID(ctx, in.PostID)
	if err != nil {
		return nil, err
	}
	if post == nil {
		return nil, models.NewNotFoundError("Post", in.PostID)
	}
	if post.OwnerID != in.UserID {
		return nil, models.NewPermissionDeniedError("You can only edit your own posts")
	}
	if !post.Editable(s.now()) {
		return nil, models.NewValidationError("Post can no longer be edited")
	}

	owner, err := s.userRepo.GetByID(ctx, in.UserID)
	if err != nil {
		return nil, err
	}
	if owner == nil {
		return nil, models.NewNotFoundError("User", in.UserID)
	}
	if err := s.validateContent(owner, in.Content, post.Media); err != nil {
		return nil, err
	}

	post.Content = in.Content
	post.Hashtags = models.ExtractHashtags(in.Content)
	post.Mentions = models.ExtractMentions(in.Content)
	post.EditChancesLeft--
	post.IsEdited = true
	editedAt := s.now()
	post.EditedAt = &editedAt
	if err := s.postRepo.Save(ctx, post); err != nil {
		return nil, err
	}
	cache.InvalidatePost(ctx, post.ID)

	post.Owner = owner
	return s.visibility.DecoratePost(ctx, in.UserID, post)
}

// DeletePost removes the caller's own post. If the post was a comment or a
// repost, the parent or original post's stats are recomputed.
func (s *PostService) DeletePost(ctx context.Context, userID, postID uint) error {
	post, err := s.postRepo.GetByID(ctx, postID)
	if err != nil {
		return err
	}
	if post == nil {
		return models.NewNotFoundError("Post", postID)
	}
	if post.OwnerID != userID {
		return models.NewPermissionDeniedError("You can only delete your own posts")
	}

	if err := s.postRepo.Delete(ctx, post); err != nil {
		return err
	}
	cache.InvalidatePost(ctx, postID)

	if post.ParentPostID != nil {
		if _, err := s.postRepo.RefreshStats(ctx, *post.ParentPostID); err != nil {
			return err
		}
	}
	if post.OriginalPostID != nil {
		if _, err := s.postRepo.RefreshStats(ctx, *post.OriginalPostID); err != nil {
			return err
		}
	}
	return nil
}

// Feed returns top-level posts visible to the viewer, newest first. Content
// from anyone in the viewer's block union is excluded entirely.
func (s *PostService) Feed(ctx context.Context, viewerID uint, limit, offset int) ([]PostView, error) {
	followingIDs, excluded, err := s.viewerSets(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	posts, err := s.postRepo.ListFeed(ctx, viewerID, followingIDs, excluded, limit, offset)
	if err != nil {
		return nil, err
	}
	return s.visibility.DecoratePosts(ctx, viewerID, posts)
}

// UserPosts returns one user's top-level posts as seen by the viewer.
func (s *PostService) UserPosts(ctx context.Context, viewerID, ownerID uint, limit, offset int) ([]PostView, error) {
	if viewerID != ownerID {
		blocked, err := s.socialRepo.EitherBlocked(ctx, viewerID, ownerID)
		if err != nil {
			return nil, err
		}
		if blocked {
			return []PostView{}, nil
		}
	}

	includeFollowersOnly := viewerID == ownerID
	if !includeFollowersOnly {
		follows, err := s.socialRepo.IsFollowing(ctx, viewerID, ownerID)
		if err != nil {
			return nil, err
		}
		includeFollowersOnly = follows
	}

	posts, err := s.postRepo.ListByOwner(ctx, ownerID, includeFollowersOnly, limit, offset)
	if err != nil {
		return nil, err
	}
	return s.visibility.DecoratePosts(ctx, viewerID, posts)
}

// Search returns visible top-level posts whose content matches the query.
func (s *PostService) Search(ctx context.Context, viewerID uint, query string, limit, offset int) ([]PostView, error) {
	if strings.TrimSpace(query) == "" {
		return nil, models.NewValidationError("Search query is required")
	}
	followingIDs, excluded, err := s.viewerSets(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	posts, err := s.postRepo.Search(ctx, viewerID, query, followingIDs, excluded, limit, offset)
	if err != nil {
		return nil, err
	}
	return s.visibility.DecoratePosts(ctx, viewerID, posts)
}

func (s *PostService) viewerSets(ctx context.Context, viewerID uint) ([]uint, []uint, error) {
	followingIDs, err := s.socialRepo.FollowingIDs(ctx, viewerID)
	if err != nil {
		return nil, nil, err
	}
	blocked, err := s.socialRepo.BlockedUnion(ctx, viewerID)
	if err != nil {
		return nil, nil, err
	}
	excluded := make([]uint, 0, len(blocked))
	for id := range blocked {
		excluded = append(excluded, id)
	}
	return followingIDs, excluded, nil
}

// CreateComment adds a comment under a post the commenter can see. Nesting
// is capped: replies to a reply at maximum depth are rejected. Comments are
// always public; they inherit reach from their parent's visibility gate.
func (s *PostService) CreateComment(ctx context.Context, userID, parentID uint, content string) (*PostView, error) {
	parent, err := s.getVisiblePost(ctx, userID, parentID)
	if err != nil {
		return nil, err
	}
	if parent.IsRepost() && parent.Content == "" {
		return nil, models.NewValidationError("Comment on the original post instead")
	}
	if parent.Depth >= models.MaxCommentDepth {
		return nil, models.NewValidationError("Maximum comment depth reached")
	}

	owner, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if owner == nil {
		return nil, models.NewNotFoundError("User", userID)
	}
	if err := s.validateContent(owner, content, nil); err != nil {
		return nil, err
	}

	comment := &models.Post{
		OwnerID:         userID,
		Content:         content,
		Hashtags:        models.ExtractHashtags(content),
		Mentions:        models.ExtractMentions(content),
		ParentPostID:    &parentID,
		Depth:           parent.Depth + 1,
		Visibility:      models.VisibilityPublic,
		EditableUntil:   s.now().Add(models.EditWindow),
		EditChancesLeft: models.EditChances,
	}
	if err := s.postRepo.Create(ctx, comment); err != nil {
		return nil, err
	}
	if _, err := s.postRepo.RefreshStats(ctx, parentID); err != nil {
		return nil, err
	}
	comment.Owner = owner

	if s.notify != nil {
		s.notify.NotifyAsync(ctx, parent.OwnerID, userID,
			models.NotificationComment, owner.Username+" commented on your post", &parentID)
	}
	s.notifyMentions(ctx, comment)

	return s.visibility.DecoratePost(ctx, userID, comment)
}

// Comments lists a post's direct comments, oldest first.
func (s *PostService) Comments(ctx context.Context, viewerID, parentID uint, limit, offset int) ([]PostView, error) {
	if _, err := s.getVisiblePost(ctx, viewerID, parentID); err != nil {
		return nil, err
	}
	comments, err := s.postRepo.ListComments(ctx, parentID, limit, offset)
	if err != nil {
		return nil, err
	}
	return s.visibility.DecoratePosts(ctx, viewerID, comments)
}

// LikePost likes a post for the user. Liking twice is a no-op; the stats
// recompute only runs when a like row was actually created.
func (s *PostService) LikePost(ctx context.Context, userID, postID uint) (*PostView, error) {
	post, err := s.getVisiblePost(ctx, userID, postID)
	if err != nil {
		return nil, err
	}

	created, err := s.postRepo.CreateLike(ctx, postID, userID)
	if err != nil {
		return nil, err
	}
	if created {
		stats, err := s.postRepo.RefreshStats(ctx, postID)
		if err != nil {
			return nil, err
		}
		post.Stats = *stats

		if s.notify != nil {
			liker, err := s.userRepo.GetByID(ctx, userID)
			if err == nil && liker != nil {
				s.notify.NotifyAsync(ctx, post.OwnerID, userID,
					models.NotificationLike, liker.Username+" liked your post", &postID)
			}
		}
	}
	return s.visibility.DecoratePost(ctx, userID, post)
}

// UnlikePost removes the user's like. Unliking something never liked is a
// no-op that still returns the current view.
func (s *PostService) UnlikePost(ctx context.Context, userID, postID uint) (*PostView, error) {
	post, err := s.getVisiblePost(ctx, userID, postID)
	if err != nil {
		return nil, err
	}

	deleted, err := s.postRepo.DeleteLike(ctx, postID, userID)
	if err != nil {
		return nil, err
	}
	if deleted {
		stats, err := s.postRepo.RefreshStats(ctx, postID)
		if err != nil {
			return nil, err
		}
		post.Stats = *stats
	}
	return s.visibility.DecoratePost(ctx, userID, post)
}

// Repost wraps a public post. Reposting a repost targets its original, so
// chains always collapse to one level. One repost per (user, original).
func (s *PostService) Repost(ctx context.Context, userID, postID uint, comment string) (*PostView, error) {
	target, err := s.getVisiblePost(ctx, userID, postID)
	if err != nil {
		return nil, err
	}
	if target.IsRepost() {
		target, err = s.getVisiblePost(ctx, userID, *target.OriginalPostID)
		if err != nil {
			return nil, err
		}
	}
	if target.Visibility != models.VisibilityPublic {
		return nil, models.NewValidationError("Only public posts can be reposted")
	}
	if target.OwnerID == userID {
		return nil, models.NewValidationError("You cannot repost your own post")
	}

	existing, err := s.postRepo.FindRepost(ctx, userID, target.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, models.NewConflictError("You have already reposted this post")
	}

	owner, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if owner == nil {
		return nil, models.NewNotFoundError("User", userID)
	}
	if comment != "" {
		if err := s.validateContent(owner, comment, nil); err != nil {
			return nil, err
		}
	}

	originalID := target.ID
	repost := &models.Post{
		OwnerID:         userID,
		Content:         comment,
		Hashtags:        models.ExtractHashtags(comment),
		Mentions:        models.ExtractMentions(comment),
		OriginalPostID:  &originalID,
		Visibility:      models.VisibilityPublic,
		EditableUntil:   s.now().Add(models.EditWindow),
		EditChancesLeft: models.EditChances,
	}
	if err := s.postRepo.Create(ctx, repost); err != nil {
		return nil, err
	}
	if _, err := s.postRepo.RefreshStats(ctx, originalID); err != nil {
		return nil, err
	}
	repost.Owner = owner
	repost.OriginalPost = target

	if s.notify != nil {
		s.notify.NotifyAsync(ctx, target.OwnerID, userID,
			models.NotificationRepost, owner.Username+" reposted your post", &originalID)
	}

	return s.visibility.DecoratePost(ctx, userID, repost)
}

// UndoRepost deletes the user's repost of the given original post.
func (s *PostService) UndoRepost(ctx context.Context, userID, originalID uint) error {
	repost, err := s.postRepo.FindRepost(ctx, userID, originalID)
	if err != nil {
		return err
	}
	if repost == nil {
		return models.NewNotFoundError("Repost", originalID)
	}
	if err := s.postRepo.Delete(ctx, repost); err != nil {
		return err
	}
	_, err = s.postRepo.RefreshStats(ctx, originalID)
	return err
}

// BookmarkPost bookmarks a visible post for the user. Idempotent.
func (s *PostService) BookmarkPost(ctx context.Context, userID, postID uint) error {
	if _, err := s.getVisiblePost(ctx, userID, postID); err != nil {
		return err
	}
	_, err := s.postRepo.CreateBookmark(ctx, userID, postID)
	return err
}

// UnbookmarkPost removes the user's bookmark. Idempotent.
func (s *PostService) UnbookmarkPost(ctx context.Context, userID, postID uint) error {
	_, err := s.postRepo.DeleteBookmark(ctx, userID, postID)
	return err
}

// Bookmarks lists the user's bookmarked posts, most recently saved first.
func (s *PostService) Bookmarks(ctx context.Context, userID uint, limit, offset int) ([]PostView, error) {
	posts, err := s.postRepo.ListBookmarked(ctx, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	return s.visibility.DecoratePosts(ctx, userID, posts)
}

func (s *PostService) notifyMentions(ctx context.Context, post *models.Post) {
	if s.notify == nil || len(post.Mentions) == 0 || post.Owner == nil {
		return
	}
	postID := post.ID
	for _, username := range post.Mentions {
		mentioned, err := s.userRepo.GetByUsername(ctx, username)
		if err != nil || mentioned == nil {
			continue
		}
		s.notify.NotifyAsync(ctx, mentioned.ID, post.OwnerID,
			models.NotificationMention, post.Owner.Username+" mentioned you", &postID)
	}
}
