package web

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/pookie-qa/pookie-runner/pkg/browser"
	"github.com/pookie-qa/pookie-runner/pkg/core"
	"github.com/pookie-qa/pookie-runner/pkg/flow"
	"github.com/pookie-qa/pookie-runner/pkg/interact"
	"github.com/pookie-qa/pookie-runner/pkg/webforms"
)

// rowQuery fills a row selector's gaps from the named form.
func rowQuery(sel flow.RowSelector) (grid string, q interact.RowQuery, err error) {
	grid, q = sel.Grid, interact.RowQuery{Link: sel.Link, Param: sel.Param, Key: sel.Key, Text: sel.Text}
	if sel.Form != "" {
		form, ok := webforms.LookupForm(sel.Form)
		if !ok {
			return "", q, core.ErrInvalidConfig.WithMessage(fmt.Sprintf("unknown form %q", sel.Form))
		}
		if grid == "" {
			grid = form.Grid
		}
		if q.Link == "" {
			q.Link = form.EditLink
		}
		if q.Param == "" {
			q.Param = form.KeyParam
		}
	}
	if grid == "" {
		return "", q, core.ErrMissingRequired.WithMessage("row selector needs a grid or a form")
	}
	if q.Key == "" && len(q.Text) == 0 {
		return "", q, core.ErrMissingRequired.WithMessage("row selector needs a key or text")
	}
	if q.Key != "" && q.Param == "" {
		return "", q, core.ErrMissingRequired.WithMessage("row key needs a param")
	}
	return grid, q, nil
}

func rowKey(grid string, q interact.RowQuery) string {
	return grid + "|" + q.Describe()
}

// snapshot returns the row recorded by an earlier waitForRow.
func (d *Driver) snapshot(grid string, q interact.RowQuery) (interact.RowSnapshot, error) {
	snap, ok := d.rows[rowKey(grid, q)]
	if !ok {
		return snap, core.ErrConditionNotMet.WithMessage(
			fmt.Sprintf("row %s was never seen; wait for it with waitForRow first", q.Describe()))
	}
	return snap, nil
}

func (d *Driver) waitForRow(ctx context.Context, step *flow.WaitForRowStep) *core.CommandResult {
	grid, q, err := rowQuery(step.Row)
	if err != nil {
		return errorResult(err, "")
	}
	snap, err := d.session.SnapshotRow(ctx, grid, q, stepTimeout(step, d.session.Timeouts.RowAppear))
	if err != nil {
		return errorResult(err, fmt.Sprintf("Row %s did not appear", q.Describe()))
	}
	d.rows[rowKey(grid, q)] = snap
	return successResult(fmt.Sprintf("Row present: %s (%d rows)", q.Describe(), snap.Count), interact.Describe(snap.Row))
}

func (d *Driver) waitForRowRemoved(ctx context.Context, step *flow.WaitForRowRemovedStep) *core.CommandResult {
	grid, q, err := rowQuery(step.Row)
	if err != nil {
		return errorResult(err, "")
	}
	snap, err := d.snapshot(grid, q)
	if err != nil {
		return errorResult(err, "")
	}
	if err := d.session.WaitForRowRemoval(ctx, snap, stepTimeout(step, d.session.Timeouts.RowRemoval)); err != nil {
		return errorResult(err, fmt.Sprintf("Row %s is still present", q.Describe()))
	}
	return successResult("Row removed: "+q.Describe(), nil)
}

func (d *Driver) verifyDeleted(ctx context.Context, step *flow.VerifyDeletedStep) *core.CommandResult {
	grid, q, err := rowQuery(step.Row)
	if err != nil {
		return errorResult(err, "")
	}
	snap, err := d.snapshot(grid, q)
	if err != nil {
		return errorResult(err, "")
	}
	return d.deleted(ctx, snap, stepTimeout(step, d.session.Timeouts.RowRemoval))
}

func (d *Driver) deleted(ctx context.Context, snap interact.RowSnapshot, timeout time.Duration) *core.CommandResult {
	outcome, err := d.session.VerifyDeleted(ctx, snap, timeout)
	if err != nil {
		return errorResult(err, fmt.Sprintf("Row %s was not deleted", snap.Query.Describe()))
	}
	delete(d.rows, rowKey(snap.Grid, snap.Query))
	result := successResult(fmt.Sprintf("Deleted %s (%s)", snap.Query.Describe(), outcome), nil)
	result.Data = outcome.String()
	return result
}

// deleteSelectors resolves the delete button, modal and confirm control of
// a deleteRow step.
func deleteSelectors(step *flow.DeleteRowStep) (button, modal, confirm string, err error) {
	var form webforms.Form
	if step.Row.Form != "" {
		form, _ = webforms.LookupForm(step.Row.Form)
	}
	button = firstNonEmpty(step.Button, form.DeleteButton)
	modal = firstNonEmpty(step.Modal, form.DeleteModal, webforms.GenericDeleteModal)
	confirm = firstNonEmpty(step.Confirm, form.ConfirmDelete)
	if button == "" || confirm == "" {
		return "", "", "", core.ErrMissingRequired.WithMessage("deleteRow needs a button and a confirm control, or a form that has them")
	}
	return button, modal, confirm, nil
}

func (d *Driver) deleteRow(ctx context.Context, step *flow.DeleteRowStep) *core.CommandResult {
	grid, q, err := rowQuery(step.Row)
	if err != nil {
		return errorResult(err, "")
	}
	buttonCSS, modalCSS, confirmCSS, err := deleteSelectors(step)
	if err != nil {
		return errorResult(err, "")
	}
	t := d.session.Timeouts

	snap, err := d.session.SnapshotRow(ctx, grid, q, t.RowAppear)
	if err != nil {
		return errorResult(err, fmt.Sprintf("Row %s is not in the grid", q.Describe()))
	}

	if step.CancelFirst {
		modal, err := d.openDeleteConfirmation(ctx, snap, buttonCSS, modalCSS)
		if err != nil {
			return errorResult(err, "")
		}
		no, err := interact.FindModalElement(modal, webforms.ModalDismiss, webforms.ModalCancel)
		if err != nil {
			return errorResult(err, "")
		}
		if err := d.session.ClickElement(ctx, no, "cancel delete"); err != nil {
			return errorResult(err, "")
		}
		if err := d.session.WaitForModalToClose(ctx, modal, t.Modal); err != nil {
			return errorResult(err, "Delete confirmation did not close after cancelling")
		}
		again, err := d.session.SnapshotRow(ctx, grid, q, t.RowAppear)
		if err != nil {
			return errorResult(err, fmt.Sprintf("Row %s disappeared after cancelling the delete", q.Describe()))
		}
		if again.Count != snap.Count {
			return errorResult(core.ErrConditionNotMet.WithMessage(
				fmt.Sprintf("grid had %d rows before cancelling and %d after", snap.Count, again.Count)), "")
		}
		snap = again
		d.log.Debug("delete cancelled, row kept", zap.String("row", q.Describe()))
	}

	modal, err := d.openDeleteConfirmation(ctx, snap, buttonCSS, modalCSS)
	if err != nil {
		return errorResult(err, "")
	}
	yes, err := interact.FindModalElement(modal, confirmCSS)
	if err != nil {
		return errorResult(err, "")
	}
	if err := d.session.ClickElement(ctx, yes, "confirm delete"); err != nil {
		return errorResult(err, "")
	}
	if err := d.session.WaitForPostback(ctx, t.UpdatePanel); err != nil {
		return errorResult(err, "")
	}
	if err := d.session.WaitForModalToClose(ctx, modal, t.Modal); err != nil {
		return errorResult(err, "Delete confirmation did not close")
	}
	return d.deleted(ctx, snap, stepTimeout(step, t.RowRemoval))
}

// openDeleteConfirmation clicks the delete button inside the snapshotted row
// and waits for the confirmation modal. The button is never looked up page
// wide, so another row cannot be deleted by mistake.
func (d *Driver) openDeleteConfirmation(ctx context.Context, snap interact.RowSnapshot, buttonCSS, modalCSS string) (browser.Element, error) {
	button, err := d.session.LocateWithin(ctx, snap.Row, buttonCSS, "delete button of row "+snap.Query.Describe(), d.session.Timeouts.Locate)
	if err != nil {
		return nil, err
	}
	if err := d.session.ClickElement(ctx, button, "delete button"); err != nil {
		return nil, err
	}
	return d.session.WaitForModal(ctx, modalCSS, "delete confirmation", d.session.Timeouts.Modal)
}
