package post

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"postapi/internal/core"
)

// ParseID converts a path identifier into a post id. Anything that is not a
// positive base-10 integer cannot name a post and is reported as not found.
func ParseID(raw string) (int64, error) {
	if raw == "" {
		return 0, core.NewNotFoundError("post not found")
	}
	for _, r := range raw {
		if r < '0' || r > '9' {
			return 0, core.NewNotFoundError("post not found")
		}
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, core.NewNotFoundError("post not found")
	}
	return id, nil
}

func validateContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return core.NewValidationError("content", "content is required")
	}
	return nil
}

// normalizeUsername applies the default for absent or empty usernames.
func normalizeUsername(username *string) (string, error) {
	if username == nil || *username == "" {
		return core.DefaultUsername, nil
	}
	if utf8.RuneCountInString(*username) > core.MaxUsernameLength {
		return "", core.NewValidationError("username",
			"username must be at most "+strconv.Itoa(core.MaxUsernameLength)+" characters")
	}
	return *username, nil
}

// normalizeImage treats an empty image as absent.
func normalizeImage(image *string) (*string, error) {
	if image == nil || *image == "" {
		return nil, nil
	}
	if utf8.RuneCountInString(*image) >= core.MaxImageLength {
		return nil, core.NewValidationError("image",
			"image must be shorter than "+strconv.Itoa(core.MaxImageLength)+" characters")
	}
	img := *image
	return &img, nil
}
