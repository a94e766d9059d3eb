package request

// UpdateProfileRequest only touches the fields that are present.
type UpdateProfileRequest struct {
	FullName  *string `json:"full_name,omitempty" validate:"omitempty,max=255"`
	AvatarURL *string `json:"avatar_url,omitempty" validate:"omitempty,url,max=2048"`
}
