package nodes

import (
	"context"
	"fmt"

	"github.com/zapdesk/flowengine/pkg/interpolate"
	"github.com/zapdesk/flowengine/pkg/models"
)

// MessageEvaluator emits one send-message effect and advances. Galleries are
// sent as a single effect with an inter-item delay applied by the channel.
type MessageEvaluator struct{}

func (MessageEvaluator) Type() models.NodeType { return models.NodeTypeMessage }

func (MessageEvaluator) Evaluate(_ context.Context, req Request, _ Deps) (Result, error) {
	content, ok := req.Node.Content.(*models.MessageContent)
	if !ok {
		return Result{}, fmt.Errorf("node %s: unexpected content type %T", req.Node.NodeID, req.Node.Content)
	}

	var effects []models.Effect

	if content.Typing {
		effects = append(effects, models.Effect{Type: models.EffectTyping})
	}

	effect := models.Effect{
		Type: models.EffectSendMessage,
		Text: interpolate.Interpolate(content.Text, req.Session.Variables),
	}

	if content.Media != nil {
		media := *content.Media
		media.Caption = interpolate.Interpolate(media.Caption, req.Session.Variables)
		effect.Media = &media
	}

	if len(content.Gallery) > 0 {
		gallery := content.Gallery
		if len(gallery) > models.MaxGalleryItems {
			gallery = gallery[:models.MaxGalleryItems]
		}

		effect.Gallery = gallery
		effect.ItemDelay = models.GalleryItemDelay
	}

	effects = append(effects, effect)

	return Result{
		Effects:  effects,
		Decision: advanceOrComplete(req.Flow, req.Node.NodeID),
	}, nil
}
