package bridge

import (
	"context"
	"fmt"
	"strconv"

	"github.com/amimof/huego"
	"github.com/rs/zerolog/log"
)

// hueController implements Controller on top of the huego bridge client.
type hueController struct {
	bridge *huego.Bridge
}

// NewHueController connects the gateway to a paired Hue bridge.
func NewHueController(host, user string) Controller {
	return &hueController{bridge: huego.New(host, user)}
}

func (c *hueController) Lights(ctx context.Context) ([]Light, error) {
	raw, err := c.bridge.GetLightsContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list lights: %w", err)
	}

	lights := make([]Light, 0, len(raw))
	for _, l := range raw {
		light := Light{ID: l.ID, Name: l.Name}
		if l.State != nil {
			on := l.State.On
			bri := int(l.State.Bri)
			ct := int(l.State.Ct)
			hue := int(l.State.Hue)
			sat := int(l.State.Sat)
			light.State = State{On: &on, Bri: &bri, Ct: &ct, Hue: &hue, Sat: &sat}
		}
		lights = append(lights, light)
	}
	return lights, nil
}

func (c *hueController) GroupLightIDs(ctx context.Context, groupID int) ([]int, error) {
	// Group 0 is the implicit all-lights group; the bridge does not list it,
	// so enumerate lights directly.
	if groupID == AllLightsGroup {
		lights, err := c.Lights(ctx)
		if err != nil {
			return nil, err
		}
		ids := make([]int, 0, len(lights))
		for _, l := range lights {
			ids = append(ids, l.ID)
		}
		return ids, nil
	}

	group, err := c.bridge.GetGroupContext(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to get group %d: %w", groupID, err)
	}

	ids := make([]int, 0, len(group.Lights))
	for _, s := range group.Lights {
		id, err := strconv.Atoi(s)
		if err != nil {
			log.Warn().Str("light", s).Msg("Skipping non-numeric light id in group")
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (c *hueController) SetLight(ctx context.Context, id int, state huego.State) error {
	if _, err := c.bridge.SetLightStateContext(ctx, id, state); err != nil {
		return fmt.Errorf("failed to set light %d state: %w", id, err)
	}
	return nil
}

func (c *hueController) SetGroup(ctx context.Context, id int, state huego.State) error {
	if _, err := c.bridge.SetGroupStateContext(ctx, id, state); err != nil {
		return fmt.Errorf("failed to set group %d state: %w", id, err)
	}
	return nil
}
