package utils

import (
	"fmt"

	"github.com/badoux/checkmail"
	"gopkg.in/gomail.v2"

	"blicktrack/config"
)

// ValidateEmailAddress checks format only; MX lookups are too slow for the
// request path
func ValidateEmailAddress(email string) error {
	if err := checkmail.ValidateFormat(email); err != nil {
		return fmt.Errorf("invalid email address: %w", err)
	}
	return nil
}

// SendOTPEmail sends a verification code email
func SendOTPEmail(to, otp string) error {
	body := fmt.Sprintf(`
		<html>
		<body>
			<h2>Your Verification Code</h2>
			<p>Please use the following code to verify your account:</p>
			<h3>%s</h3>
			<p>This code will expire in 15 minutes.</p>
		</body>
		</html>
	`, otp)

	return sendEmail(to, "Your Verification Code", body)
}

// SendPasswordResetOTPEmail sends a password reset code email
func SendPasswordResetOTPEmail(to, otp string) error {
	body := fmt.Sprintf(`
		<html>
		<body>
			<h2>Password Reset Request</h2>
			<p>Please use the following code to reset your password:</p>
			<h3>%s</h3>
			<p>This code will expire in 15 minutes.</p>
			<p>If you didn't request this, please ignore this email.</p>
		</body>
		</html>
	`, otp)

	return sendEmail(to, "Password Reset Code", body)
}

func sendEmail(to, subject, body string) error {
	smtp := config.AppConfig.SMTP
	if smtp.Host == "" {
		return fmt.Errorf("email configuration not initialized")
	}

	m := gomail.NewMessage()
	m.SetHeader("From", smtp.From)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", body)

	d := gomail.NewDialer(smtp.Host, smtp.Port, smtp.Username, smtp.Password)
	if err := d.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}
