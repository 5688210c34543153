package service

import (
	"context"
	"time"

	"ripple/internal/models"
	"ripple/internal/repository"
)

// PostView is a post decorated for one viewer: owner profile attached,
// per-viewer flags resolved, and blocked owners redacted.
type PostView struct {
	ID        uint           `json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	Owner     models.Profile `json:"owner"`

	Content  string             `json:"content"`
	Media    []models.MediaItem `json:"media,omitempty"`
	Hashtags []string           `json:"hashtags,omitempty"`
	Mentions []string           `json:"mentions,omitempty"`

	ParentPostID *uint                 `json:"parent_post_id,omitempty"`
	Depth        int                   `json:"depth"`
	Visibility   models.PostVisibility `json:"visibility"`
	Original     *PostView             `json:"original,omitempty"`

	Stats models.PostStats `json:"stats"`

	Liked                  bool `json:"liked"`
	Reposted               bool `json:"reposted"`
	Bookmarked             bool `json:"bookmarked"`
	FollowingOwner         bool `json:"following_owner"`
	IsBlockedByCurrentUser bool `json:"is_blocked_by_current_user"`

	EditableUntil   time.Time  `json:"editable_until"`
	EditChancesLeft int        `json:"edit_chances_left"`
	IsEdited        bool       `json:"is_edited"`
	EditedAt        *time.Time `json:"edited_at,omitempty"`
}

// VisibilityService turns raw posts into viewer-specific views. All
// per-viewer flags are resolved with one batched query per concern, not one
// per post.
type VisibilityService struct {
	postRepo   repository.PostRepository
	socialRepo repository.SocialRepository
}

// NewVisibilityService returns a new VisibilityService.
func NewVisibilityService(postRepo repository.PostRepository, socialRepo repository.SocialRepository) *VisibilityService {
	return &VisibilityService{
		postRepo:   postRepo,
		socialRepo: socialRepo,
	}
}

// CanView reports whether the viewer may see the post at all: the owner
// always can, blocked pairs never can, public is open, and followers-only
// requires the viewer to follow the owner.
func (s *VisibilityService) CanView(ctx context.Context, viewerID uint, post *models.Post) (bool, error) {
	if post.OwnerID == viewerID {
		return true, nil
	}
	blocked, err := s.socialRepo.EitherBlocked(ctx, viewerID, post.OwnerID)
	if err != nil {
		return false, err
	}
	if blocked {
		return false, nil
	}
	if post.Visibility == models.VisibilityPublic {
		return true, nil
	}
	return s.socialRepo.IsFollowing(ctx, viewerID, post.OwnerID)
}

// DecoratePost decorates a single post for the viewer.
func (s *VisibilityService) DecoratePost(ctx context.Context, viewerID uint, post *models.Post) (*PostView, error) {
	views, err := s.DecoratePosts(ctx, viewerID, []models.Post{*post})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

// DecoratePosts decorates a batch of posts for the viewer. Reposts carry a
// nested view of their original; the original's flags are resolved against
// the same batched sets.
func (s *VisibilityService) DecoratePosts(ctx context.Context, viewerID uint, posts []models.Post) ([]PostView, error) {
	views := make([]PostView, 0, len(posts))
	if len(posts) == 0 {
		return views, nil
	}

	postIDs := make([]uint, 0, len(posts))
	ownerIDs := make([]uint, 0, len(posts))
	originalIDs := make([]uint, 0, len(posts))
	for i := range posts {
		p := &posts[i]
		postIDs = append(postIDs, p.ID)
		ownerIDs = append(ownerIDs, p.OwnerID)
		if p.OriginalPost != nil {
			postIDs = append(postIDs, p.OriginalPost.ID)
			ownerIDs = append(ownerIDs, p.OriginalPost.OwnerID)
			originalIDs = append(originalIDs, p.OriginalPost.ID)
		}
		if p.OriginalPostID != nil {
			originalIDs = append(originalIDs, *p.OriginalPostID)
		}
	}

	liked, err := s.postRepo.LikedSet(ctx, viewerID, postIDs)
	if err != nil {
		return nil, err
	}
	reposted, err := s.postRepo.RepostedSet(ctx, viewerID, originalIDs)
	if err != nil {
		return nil, err
	}
	bookmarked, err := s.postRepo.BookmarkedSet(ctx, viewerID, postIDs)
	if err != nil {
		return nil, err
	}
	followed, err := s.socialRepo.FollowedSet(ctx, viewerID, ownerIDs)
	if err != nil {
		return nil, err
	}
	blocked, err := s.socialRepo.BlockedUnion(ctx, viewerID)
	if err != nil {
		return nil, err
	}

	flags := viewerFlags{
		viewerID:   viewerID,
		liked:      liked,
		reposted:   reposted,
		bookmarked: bookmarked,
		followed:   followed,
		blocked:    blocked,
	}

	for i := range posts {
		views = append(views, buildView(&posts[i], flags, true))
	}
	return views, nil
}

type viewerFlags struct {
	viewerID   uint
	liked      map[uint]struct{}
	reposted   map[uint]struct{}
	bookmarked map[uint]struct{}
	followed   map[uint]struct{}
	blocked    map[uint]struct{}
}

func buildView(post *models.Post, flags viewerFlags, nest bool) PostView {
	view := PostView{
		ID:              post.ID,
		CreatedAt:       post.CreatedAt,
		UpdatedAt:       post.UpdatedAt,
		Content:         post.Content,
		Media:           post.Media,
		Hashtags:        post.Hashtags,
		Mentions:        post.Mentions,
		ParentPostID:    post.ParentPostID,
		Depth:           post.Depth,
		Visibility:      post.Visibility,
		Stats:           post.Stats,
		EditableUntil:   post.EditableUntil,
		EditChancesLeft: post.EditChancesLeft,
		IsEdited:        post.IsEdited,
		EditedAt:        post.EditedAt,
	}

	_, ownerBlocked := flags.blocked[post.OwnerID]
	if ownerBlocked {
		view.Owner = models.RedactedProfile(post.OwnerID)
		view.IsBlockedByCurrentUser = true
	} else if post.Owner != nil {
		view.Owner = post.Owner.Profile()
	} else {
		view.Owner = models.Profile{ID: post.OwnerID}
	}

	if _, ok := flags.liked[post.ID]; ok {
		view.Liked = true
	}
	if _, ok := flags.bookmarked[post.ID]; ok {
		view.Bookmarked = true
	}
	if _, ok := flags.followed[post.OwnerID]; ok {
		view.FollowingOwner = true
	}
	if post.OriginalPostID != nil {
		if _, ok := flags.reposted[*post.OriginalPostID]; ok {
			view.Reposted = true
		}
	} else if _, ok := flags.reposted[post.ID]; ok {
		view.Reposted = true
	}

	if nest && post.OriginalPost != nil {
		// A blocked author's content must not surface through someone
		// else's repost. The wrapper stays visible; the nested view does
		// not.
		if _, originalBlocked := flags.blocked[post.OriginalPost.OwnerID]; !originalBlocked {
			original := buildView(post.OriginalPost, flags, false)
			view.Original = &original
		}
	}
	return view
}
