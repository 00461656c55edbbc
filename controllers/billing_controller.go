package controller

import (
	"encoding/json"
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/stripe/stripe-go/v76"
	"gorm.io/gorm"

	"blicktrack/models"
	"blicktrack/utils"
	"blicktrack/worker"
)

// BillingController handles plan purchases. The payment intent carries the
// transaction ID in metadata; the webhook applies the plan to the tenant once
// Stripe confirms payment.
type BillingController struct {
	DB     *gorm.DB
	Logger *log.Logger
	Audit  *worker.AuditWorker
}

func NewBillingController(db *gorm.DB, logger *log.Logger, audit *worker.AuditWorker) *BillingController {
	return &BillingController{
		DB:     db,
		Logger: logger,
		Audit:  audit,
	}
}

type PurchasePlanRequest struct {
	PlanID string `json:"plan_id" validate:"required,uuid"`
}

// ListPlans returns the public plan catalog with per-plan features
func (bc *BillingController) ListPlans(c *fiber.Ctx) error {
	var plans []models.SubscriptionPlan
	if err := bc.DB.Preload("PlanFeatures.Feature").
		Where("is_active = ? AND is_public = ?", true, true).
		Order("price ASC").Find(&plans).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Database error", err)
	}
	return c.JSON(utils.SuccessResponse(plans))
}

// CreatePaymentIntent starts a plan purchase for the caller's tenant
func (bc *BillingController) CreatePaymentIntent(c *fiber.Ctx) error {
	actor := c.Locals("user").(*models.User)
	if actor.TenantID == nil {
		return utils.ErrorResponse(c, fiber.StatusForbidden, "No tenant associated with this account", nil)
	}

	var req PurchasePlanRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	planID, err := utils.ParseUUID(req.PlanID)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid plan ID", err)
	}

	var plan models.SubscriptionPlan
	if err := bc.DB.First(&plan, "id = ? AND is_active = ?", planID, true).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Plan not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Database error", err)
	}

	txn := models.PlanTransaction{
		TenantID: *actor.TenantID,
		UserID:   actor.ID,
		PlanID:   plan.ID,
		Amount:   plan.Price,
		Currency: plan.Currency,
		Status:   models.TransactionPending,
	}
	if err := bc.DB.Create(&txn).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create transaction", err)
	}

	intent, err := utils.CreatePlanPaymentIntent(plan.Price, plan.Currency, map[string]string{
		"transaction_id": txn.ID.String(),
		"tenant_id":      actor.TenantID.String(),
		"plan_id":        plan.ID.String(),
	})
	if err != nil {
		bc.DB.Model(&txn).Updates(map[string]interface{}{
			"status":         models.TransactionFailed,
			"failure_reason": err.Error(),
		})
		return utils.ErrorResponse(c, fiber.StatusBadGateway, "Payment provider error", err)
	}

	if err := bc.DB.Model(&txn).Update("stripe_payment_intent_id", intent.ID).Error; err != nil {
		bc.Logger.Printf("failed to attach payment intent %s to transaction %s: %v", intent.ID, txn.ID, err)
	}

	return c.JSON(utils.SuccessResponse(fiber.Map{
		"transaction_id": txn.ID,
		"client_secret":  intent.ClientSecret,
		"amount":         plan.Price,
		"currency":       plan.Currency,
	}))
}

// HandleWebhook processes Stripe events. On payment success the plan is
// applied to the tenant.
func (bc *BillingController) HandleWebhook(c *fiber.Ctx) error {
	event, err := utils.ConstructWebhookEvent(c.Body(), c.Get("Stripe-Signature"))
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid webhook signature", err)
	}

	switch event.Type {
	case "payment_intent.succeeded":
		var intent stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, "Malformed event payload", err)
		}
		if err := bc.applyPayment(&intent); err != nil {
			bc.Logger.Printf("failed to apply payment %s: %v", intent.ID, err)
			return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to apply payment", err)
		}
	case "payment_intent.payment_failed":
		var intent stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, "Malformed event payload", err)
		}
		bc.DB.Model(&models.PlanTransaction{}).
			Where("stripe_payment_intent_id = ?", intent.ID).
			Updates(map[string]interface{}{
				"status":         models.TransactionFailed,
				"failure_reason": "payment failed",
			})
	}

	return c.JSON(utils.SuccessResponse(fiber.Map{"received": true}))
}

func (bc *BillingController) applyPayment(intent *stripe.PaymentIntent) error {
	var txn models.PlanTransaction
	if err := bc.DB.Where("stripe_payment_intent_id = ?", intent.ID).First(&txn).Error; err != nil {
		return err
	}
	if txn.Status == models.TransactionCompleted {
		// Stripe retries webhooks; applying twice is a no-op
		return nil
	}

	return bc.DB.Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{"status": models.TransactionCompleted}
		if intent.LatestCharge != nil {
			updates["stripe_charge_id"] = intent.LatestCharge.ID
		}
		if err := tx.Model(&txn).Updates(updates).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Tenant{}).Where("id = ?", txn.TenantID).
			Updates(map[string]interface{}{"plan_id": txn.PlanID, "is_trial": false}).Error; err != nil {
			return err
		}

		bc.Audit.Record(models.AuditLog{
			TenantID:  &txn.TenantID,
			UserID:    &txn.UserID,
			EventType: models.EventPlanPurchased,
			Action:    "Subscription plan purchased",
			Resource:  "tenant/" + txn.TenantID.String() + "/plan/" + txn.PlanID.String(),
			Severity:  models.SeverityMedium,
		})
		return nil
	})
}
