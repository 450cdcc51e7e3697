package cli

import (
	"fmt"
)

type ConsumerAddCmd struct {
	ID string `arg:"" help:"Consumer ID, usually the widget instance identifier."`
}

func (c *ConsumerAddCmd) Run(ctx *Context) error {
	if err := ctx.Store.AddConsumer(c.ID); err != nil {
		return err
	}
	ctx.printf("%s Registered consumer %s\n", okStyle.Render("✓"), c.ID)
	return nil
}

type ConsumerRemoveCmd struct {
	ID string `arg:"" help:"Consumer ID to remove."`
}

func (c *ConsumerRemoveCmd) Run(ctx *Context) error {
	removed, err := ctx.Store.RemoveConsumer(c.ID)
	if err != nil {
		return err
	}
	if !removed {
		return fmt.Errorf("consumer %q is not registered", c.ID)
	}
	ctx.printf("%s Removed consumer %s\n", okStyle.Render("✓"), c.ID)
	return nil
}

type ConsumerListCmd struct{}

func (c *ConsumerListCmd) Run(ctx *Context) error {
	consumers, err := ctx.Store.ListConsumers()
	if err != nil {
		return err
	}
	if len(consumers) == 0 {
		ctx.printf("No consumers registered. The daily refresh stays idle until one is added.\n")
		return nil
	}
	for _, consumer := range consumers {
		ctx.printf("%s %s\n", labelStyle.Render(consumer.ID), consumer.RegisteredAt)
	}
	return nil
}
