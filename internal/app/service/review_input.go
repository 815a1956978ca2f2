package service

import (
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/truecar-kr/truecar-backend/internal/app/model"
)

const (
	maxTitleLength    = 200
	maxRating         = 5
	maxImageURLLength = 1024
)

// ReviewInput is the full field set accepted on create.
type ReviewInput struct {
	Title       string            `json:"title"`
	Content     string            `json:"content"`
	Author      string            `json:"author"`
	Rating      int               `json:"rating"`
	ReviewDate  string            `json:"review_date"`
	ImageURL    string            `json:"image_url"`
	OrderDetail model.OrderDetail `json:"order_detail"`
}

func (in *ReviewInput) normalize() {
	in.Title = strings.TrimSpace(in.Title)
	in.Content = strings.TrimSpace(in.Content)
	in.Author = strings.TrimSpace(in.Author)
	in.ImageURL = strings.TrimSpace(in.ImageURL)
}

func (in ReviewInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Title,
			validation.Required.Error("title is required"),
			validation.RuneLength(1, maxTitleLength),
		),
		validation.Field(&in.Content,
			validation.Required.Error("content is required"),
		),
		validation.Field(&in.Rating, validation.Min(0), validation.Max(maxRating)),
		validation.Field(&in.ImageURL, validation.Length(0, maxImageURLLength)),
	)
}

func (in ReviewInput) toModel() *model.Review {
	return &model.Review{
		Title:       in.Title,
		Content:     in.Content,
		Author:      in.Author,
		Rating:      in.Rating,
		ReviewDate:  in.ReviewDate,
		ImageURL:    in.ImageURL,
		OrderDetail: in.OrderDetail,
	}
}

// ReviewPatch holds a partial update. Nil fields are left untouched.
type ReviewPatch struct {
	Title       *string             `json:"title"`
	Content     *string             `json:"content"`
	Author      *string             `json:"author"`
	Rating      *int                `json:"rating"`
	ReviewDate  *string             `json:"review_date"`
	ImageURL    *string             `json:"image_url"`
	Status      *model.ReviewStatus `json:"status"`
	OrderDetail *model.OrderDetail  `json:"order_detail"`
}

func trimPtr(s *string) {
	if s != nil {
		*s = strings.TrimSpace(*s)
	}
}

func (p *ReviewPatch) normalize() {
	trimPtr(p.Title)
	trimPtr(p.Content)
	trimPtr(p.Author)
	trimPtr(p.ImageURL)
}

func (p ReviewPatch) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Title,
			validation.NilOrNotEmpty.Error("title cannot be empty"),
			validation.RuneLength(1, maxTitleLength),
		),
		validation.Field(&p.Content, validation.NilOrNotEmpty.Error("content cannot be empty")),
		validation.Field(&p.Rating, validation.Min(0), validation.Max(maxRating)),
		validation.Field(&p.ImageURL, validation.Length(0, maxImageURLLength)),
		validation.Field(&p.Status, validation.NilOrNotEmpty, validation.In(
			model.ReviewStatusActive,
			model.ReviewStatusInactive,
			model.ReviewStatusPending,
		).Error("status must be one of active, inactive, pending")),
	)
}

// IsEmpty reports whether the patch changes nothing.
func (p ReviewPatch) IsEmpty() bool {
	return p.Title == nil && p.Content == nil && p.Author == nil && p.Rating == nil &&
		p.ReviewDate == nil && p.ImageURL == nil && p.Status == nil && p.OrderDetail == nil
}

// updates maps the patch onto column names. updated_at is added by the caller.
func (p ReviewPatch) updates() map[string]interface{} {
	updates := map[string]interface{}{}
	if p.Title != nil {
		updates["title"] = *p.Title
	}
	if p.Content != nil {
		updates["content"] = *p.Content
	}
	if p.Author != nil {
		updates["author"] = *p.Author
	}
	if p.Rating != nil {
		updates["rating"] = *p.Rating
	}
	if p.ReviewDate != nil {
		updates["review_date"] = *p.ReviewDate
	}
	if p.ImageURL != nil {
		updates["image_url"] = *p.ImageURL
	}
	if p.Status != nil {
		updates["status"] = *p.Status
	}
	if d := p.OrderDetail; d != nil {
		updates["order_vehicle_type"] = d.VehicleType
		updates["order_budget"] = d.Budget
		updates["order_mileage"] = d.Mileage
		updates["order_preferred_color"] = d.PreferredColor
		updates["order_repair_history"] = d.RepairHistory
		updates["order_reference_site"] = d.ReferenceSite
	}
	return updates
}
