package utils

import (
	"fmt"
	"log"
	"net/smtp"
	"os"
	"strings"
	"time"
)

var (
	emailFrom     = os.Getenv("EMAIL_FROM")
	emailPassword = os.Getenv("EMAIL_PASSWORD")
	smtpHost      = os.Getenv("SMTP_HOST")
	smtpPort      = os.Getenv("SMTP_PORT")
	companyName   = "FleetRent Limited"
	baseURL       = os.Getenv("BASE_URL")
)

// Common header template for all emails
const emailHeader = `
<!DOCTYPE html>
<html>
<head>
	<meta charset="UTF-8">
	<meta name="viewport" content="width=device-width, initial-scale=1.0">
</head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333; margin: 0; padding: 0;">
	<div style="max-width: 600px; margin: 0 auto; padding: 20px;">
		<div style="text-align: center; margin-bottom: 30px; background-color: #f9f9f9; padding: 20px;">
			<h2 style="color: #1565C0; margin: 0;">FleetRent</h2>
		</div>
`

// Common footer template for all emails
const emailFooter = `
		<div style="text-align: center; margin-top: 20px; font-size: 12px; color: #666; border-top: 1px solid #eee; padding-top: 20px;">
			<p>This is an automated message, please do not reply to this email.</p>
			<p>© 2026 FleetRent Limited. All rights reserved.</p>
		</div>
	</div>
</body>
</html>
`

func sendEmail(to []string, subject, body string) error {
	if emailFrom == "" || emailPassword == "" || smtpHost == "" || smtpPort == "" {
		return fmt.Errorf("email configuration not set")
	}

	headers := make(map[string]string)
	headers["From"] = fmt.Sprintf("%s <%s>", companyName, emailFrom)
	headers["To"] = strings.Join(to, ",")
	headers["Subject"] = subject
	headers["MIME-Version"] = "1.0"
	headers["Content-Type"] = "text/html; charset=UTF-8"
	headers["X-Mailer"] = "FleetRent-Mailer"

	message := ""
	for key, value := range headers {
		message += fmt.Sprintf("%s: %s\r\n", key, value)
	}
	message += "\r\n" + body

	auth := smtp.PlainAuth("", emailFrom, emailPassword, smtpHost)

	err := smtp.SendMail(smtpHost+":"+smtpPort, auth, emailFrom, to, []byte(message))
	if err != nil {
		log.Printf("Failed to send email: %v", err)
		return err
	}

	log.Printf("Successfully sent email to recipients: %v", to)
	return nil
}

// SendBookingReservedEmail confirms a paid reservation to the customer.
func SendBookingReservedEmail(clientEmail, vehicleName string, pickupAt, dropoffAt time.Time, total float64) error {
	subject := "Reservation Confirmed - FleetRent"
	body := fmt.Sprintf(emailHeader+`
				<div style="background-color: #f9f9f9; padding: 20px; border-radius: 5px;">
					<h1 style="color: #2c3e50; text-align: center;">Reservation Confirmed</h1>
					<p>Hello,</p>
					<p>Your payment was received and a <strong>%s</strong> is reserved for you
					from <strong>%s</strong> to <strong>%s</strong>.</p>
					<p>Total charged: <strong>%.2f</strong></p>
					<div style="text-align: center; margin: 30px 0;">
						<a href="%s/bookings" style="background-color: #1565C0; color: white; padding: 12px 25px; text-decoration: none; border-radius: 5px;">View Your Booking</a>
					</div>
					<p>Best regards,<br>The FleetRent Team</p>
				</div>`+emailFooter,
		vehicleName,
		pickupAt.Format("Mon, 02 Jan 2006 15:04"),
		dropoffAt.Format("Mon, 02 Jan 2006 15:04"),
		total, baseURL)

	return sendEmail([]string{clientEmail}, subject, body)
}

// SendBookingCancelledEmail notifies the customer of a cancellation. When the
// cancellation followed a successful payment (capacity ran out between
// checkout and settlement) the refund note is included.
func SendBookingCancelledEmail(clientEmail string, refundDue bool) error {
	subject := "Booking Cancelled - FleetRent"
	refundNote := ""
	if refundDue {
		refundNote = "<p>Your payment will be refunded in full within 5-7 business days.</p>"
	}
	body := fmt.Sprintf(emailHeader+`
				<div style="background-color: #f9f9f9; padding: 20px; border-radius: 5px;">
					<h1 style="color: #2c3e50; text-align: center;">Booking Cancelled</h1>
					<p>Hello,</p>
					<p>Your booking has been cancelled.</p>
					%s
					<div style="text-align: center; margin: 30px 0;">
						<a href="%s/vehicles" style="background-color: #1565C0; color: white; padding: 12px 25px; text-decoration: none; border-radius: 5px;">Browse Vehicles</a>
					</div>
					<p>Best regards,<br>The FleetRent Team</p>
				</div>`+emailFooter,
		refundNote, baseURL)

	return sendEmail([]string{clientEmail}, subject, body)
}

// SendPasswordResetOTP mails a password-reset code.
func SendPasswordResetOTP(email, otp string) error {
	subject := "Password Reset Code - FleetRent"
	body := fmt.Sprintf(emailHeader+`
				<div style="background-color: #f9f9f9; padding: 20px; border-radius: 5px;">
					<h1 style="color: #2c3e50; text-align: center;">Password Reset</h1>
					<p>Hello,</p>
					<p>Use the code below to reset your password. It expires in 15 minutes.</p>
					<div style="text-align: center; margin: 30px 0; font-size: 28px; letter-spacing: 6px;">
						<strong>%s</strong>
					</div>
					<p>If you did not request this, you can safely ignore this email.</p>
					<p>Best regards,<br>The FleetRent Team</p>
				</div>`+emailFooter,
		otp)

	return sendEmail([]string{email}, subject, body)
}
