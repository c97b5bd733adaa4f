package nodes

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/zapdesk/flowengine/pkg/models"
)

func TestValidateReplyText(t *testing.T) {
	assert.True(t, ValidateReply(models.ValidationText, "anything"))
	assert.True(t, ValidateReply("", "anything"), "unset kind accepts everything")
}

func TestValidateReplyEmail(t *testing.T) {
	assert.True(t, ValidateReply(models.ValidationEmail, "ana@example.com"))
	assert.False(t, ValidateReply(models.ValidationEmail, "ana@example"))
	assert.False(t, ValidateReply(models.ValidationEmail, "not an email"))
	assert.False(t, ValidateReply(models.ValidationEmail, "a b@example.com"))
}

func TestValidateReplyPhone(t *testing.T) {
	assert.True(t, ValidateReply(models.ValidationPhone, "+55 (11) 91234-5678"))
	assert.True(t, ValidateReply(models.ValidationPhone, "11912345678"))
	assert.False(t, ValidateReply(models.ValidationPhone, "1234567"), "too few digits")
	assert.False(t, ValidateReply(models.ValidationPhone, "1234567890123456"), "too many digits")
}

func TestValidateReplyNumber(t *testing.T) {
	assert.True(t, ValidateReply(models.ValidationNumber, "42"))
	assert.True(t, ValidateReply(models.ValidationNumber, "3,14"), "comma decimal separator accepted")
	assert.False(t, ValidateReply(models.ValidationNumber, "fourty-two"))
}

func TestValidateReplyCPF(t *testing.T) {
	assert.True(t, ValidateReply(models.ValidationCPF, "529.982.247-25"))
	assert.True(t, ValidateReply(models.ValidationCPF, "52998224725"))
	assert.False(t, ValidateReply(models.ValidationCPF, "529.982.247-26"), "wrong check digit")
	assert.False(t, ValidateReply(models.ValidationCPF, "111.111.111-11"), "repeated digits rejected")
	assert.False(t, ValidateReply(models.ValidationCPF, "1234567890"))
}

func TestValidateReplyDate(t *testing.T) {
	assert.True(t, ValidateReply(models.ValidationDate, "31/12/2026"))
	assert.True(t, ValidateReply(models.ValidationDate, "2026-12-31"))
	assert.False(t, ValidateReply(models.ValidationDate, "12/31/2026"))
	assert.False(t, ValidateReply(models.ValidationDate, "yesterday"))
}
