package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"net/url"
	"strings"

	"github.com/getevo/evo/v2"
	"github.com/getevo/evo/v2/lib/db"
	"github.com/getevo/evo/v2/lib/log"
	"github.com/iesreza/hrdesk-backend/lib/response"
	"github.com/iesreza/hrdesk-backend/lib/validate"
	"golang.org/x/oauth2"
)

type Controller struct {
}

type MicrosoftUserInfo struct {
	ID                string `json:"id"`
	DisplayName       string `json:"displayName"`
	Mail              string `json:"mail"`
	UserPrincipalName string `json:"userPrincipalName"`
}

// LoginRequest accepts either the employee id or the email as login
type LoginRequest struct {
	Login    string `json:"login" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresIn    int64     `json:"expires_in"`
	Employee     *Employee `json:"employee"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type EditProfileRequest struct {
	Name     string  `json:"name" validate:"omitempty,max=255"`
	Password *string `json:"password" validate:"omitempty,min=8"`
}

func issueTokens(employee *Employee) (*LoginResponse, error) {
	accessToken, err := employee.GenerateAccessToken()
	if err != nil {
		return nil, err
	}
	refreshToken, err := employee.GenerateRefreshToken()
	if err != nil {
		return nil, err
	}
	return &LoginResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(AccessTTL.Seconds()),
		Employee:     employee,
	}, nil
}

func (c Controller) LoginHandler(request *evo.Request) any {
	var req LoginRequest
	if err := request.BodyParser(&req); err != nil {
		return response.Error(response.ErrInvalidInput)
	}
	if err := validate.Struct(&req); err != nil {
		return response.From(err)
	}

	var invalidCredentials = response.NewError(response.ErrorCodeUnauthorized, "Invalid login or password", 401)

	var employee Employee
	var login = strings.TrimSpace(req.Login)
	if err := db.Where("employee_id = ? OR email = ?", login, strings.ToLower(login)).First(&employee).Error; err != nil {
		(&Employee{EmployeeID: login}).RecordLogin(request, false, "employee_not_found")
		return response.Error(invalidCredentials)
	}

	if !employee.VerifyPassword(req.Password) {
		employee.RecordLogin(request, false, "invalid_password")
		return response.Error(invalidCredentials)
	}

	if !employee.Active() {
		employee.RecordLogin(request, false, "account_inactive")
		return response.Error(response.NewError(response.ErrorCodeForbidden, "Your account is inactive. Please contact HR.", 403))
	}

	tokens, err := issueTokens(&employee)
	if err != nil {
		log.Error("token generation failed for %s: %v", employee.EmployeeID, err)
		employee.RecordLogin(request, false, "token_generation_failed")
		return response.Error(response.ErrInternalError)
	}

	employee.RecordLogin(request, true, "login_success")
	return response.OK(tokens)
}

func (c Controller) RefreshHandler(request *evo.Request) any {
	var req RefreshRequest
	if err := request.BodyParser(&req); err != nil {
		return response.Error(response.ErrInvalidInput)
	}
	if err := validate.Struct(&req); err != nil {
		return response.From(err)
	}

	claims, err := ParseToken(req.RefreshToken, tokenTypeRefresh)
	if err != nil {
		return response.Error(response.ErrInvalidToken)
	}

	var employee Employee
	if err := db.Where("employee_id = ?", claims.EmployeeID).First(&employee).Error; err != nil {
		return response.Error(response.ErrEmployeeNotFound)
	}
	if !employee.Active() {
		return response.Error(response.ErrInvalidToken)
	}

	tokens, err := issueTokens(&employee)
	if err != nil {
		log.Error("token refresh failed for %s: %v", employee.EmployeeID, err)
		return response.Error(response.ErrInternalError)
	}
	return response.OK(tokens)
}

// GetProfile returns the current employee with the resolved identity
func (c Controller) GetProfile(request *evo.Request) any {
	employee, err := CurrentEmployee(request)
	if err != nil {
		return response.From(err)
	}
	return response.OK(map[string]any{
		"employee": employee,
		"identity": employee.Identity(),
	})
}

// EditProfile lets an employee change their display name and password
func (c Controller) EditProfile(request *evo.Request) any {
	employee, err := CurrentEmployee(request)
	if err != nil {
		return response.From(err)
	}
	var req EditProfileRequest
	if err := request.BodyParser(&req); err != nil {
		return response.Error(response.ErrInvalidInput)
	}
	if err := validate.Struct(&req); err != nil {
		return response.From(err)
	}

	if req.Name != "" {
		employee.Name = req.Name
	}
	if req.Password != nil && *req.Password != "" {
		if err := employee.SetPassword(*req.Password); err != nil {
			log.Error("password hash failed: %v", err)
			return response.Error(response.ErrInternalError)
		}
	}

	if err := db.Save(employee).Error; err != nil {
		log.Error("profile update failed for %s: %v", employee.EmployeeID, err)
		return response.Error(response.ErrDatabaseError)
	}
	invalidateManagerRoster()
	return response.OKWithMessage(employee, "Profile updated successfully")
}

// generateState generates a random state for OAuth
func (c Controller) generateState() string {
	b := make([]byte, 32)
	_, _ = rand.Read(b)
	return base64.URLEncoding.EncodeToString(b)
}

// generateStateWithRedirect embeds the frontend redirect url in the OAuth state
func (c Controller) generateStateWithRedirect(redirectURL string) string {
	jsonData, err := json.Marshal(map[string]string{
		"random":       c.generateState(),
		"redirect_url": redirectURL,
	})
	if err != nil {
		return c.generateState()
	}
	return base64.URLEncoding.EncodeToString(jsonData)
}

func (c Controller) extractRedirectFromState(state string) string {
	const fallback = "/login"
	decoded, err := base64.URLEncoding.DecodeString(state)
	if err != nil {
		return fallback
	}
	var stateData map[string]string
	if err := json.Unmarshal(decoded, &stateData); err != nil {
		return fallback
	}
	if redirectURL, ok := stateData["redirect_url"]; ok && redirectURL != "" {
		return redirectURL
	}
	return fallback
}

// MicrosoftOAuthLogin redirects to the Microsoft consent page
func (c Controller) MicrosoftOAuthLogin(request *evo.Request) any {
	redirectURL := request.Query("redirect_url").String()
	if redirectURL == "" {
		return response.Error(response.ErrMissingRequired.WithMessage("redirect_url parameter is required"))
	}
	if MicrosoftOAuthConfig == nil || MicrosoftOAuthConfig.ClientID == "" {
		return response.Error(response.NewError(response.ErrorCodeInternalError, "Microsoft OAuth is not configured", 503))
	}

	state := c.generateStateWithRedirect(redirectURL)
	authURL := MicrosoftOAuthConfig.AuthCodeURL(state, oauth2.AccessTypeOffline)

	if request.Query("format").String() == "json" {
		return response.OK(map[string]string{
			"auth_url": authURL,
			"state":    state,
		})
	}
	return request.Redirect(authURL)
}

// MicrosoftOAuthCallback signs in the employee whose directory email matches the Microsoft account
func (c Controller) MicrosoftOAuthCallback(request *evo.Request) any {
	code := request.Query("code").String()
	redirectURL := c.extractRedirectFromState(request.Query("state").String())

	if code == "" {
		return request.Redirect(redirectURL + "?oauth=error&message=" + url.QueryEscape("Authorization code is required"))
	}

	token, err := MicrosoftOAuthConfig.Exchange(context.Background(), code)
	if err != nil {
		log.Error("microsoft token exchange failed: %v", err)
		return request.Redirect(redirectURL + "?oauth=error&message=" + url.QueryEscape("Failed to exchange authorization code"))
	}

	client := MicrosoftOAuthConfig.Client(context.Background(), token)
	resp, err := client.Get("https://graph.microsoft.com/v1.0/me")
	if err != nil {
		log.Error("microsoft profile request failed: %v", err)
		return request.Redirect(redirectURL + "?oauth=error&message=" + url.QueryEscape("Failed to get user information"))
	}
	defer resp.Body.Close()

	var userInfo MicrosoftUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&userInfo); err != nil {
		log.Error("microsoft profile decode failed: %v", err)
		return request.Redirect(redirectURL + "?oauth=error&message=" + url.QueryEscape("Failed to decode user information"))
	}

	email := userInfo.Mail
	if email == "" {
		email = userInfo.UserPrincipalName
	}

	var employee Employee
	if err := db.Where("email = ?", strings.ToLower(email)).First(&employee).Error; err != nil || !employee.Active() {
		return request.Redirect(redirectURL + "?oauth=error&message=" + url.QueryEscape("No active employee is registered with this account"))
	}

	tokens, err := issueTokens(&employee)
	if err != nil {
		log.Error("token generation failed for %s: %v", employee.EmployeeID, err)
		return request.Redirect(redirectURL + "?oauth=error&message=" + url.QueryEscape("Failed to generate access token"))
	}

	employee.RecordLogin(request, true, "oauth_microsoft")
	return request.Redirect(redirectURL + "?oauth=success&data=" + encodeResponseData(tokens))
}

func encodeResponseData(data *LoginResponse) string {
	jsonData, err := json.Marshal(data)
	if err != nil {
		log.Error("failed to marshal OAuth response: %v", err)
		return ""
	}
	return url.QueryEscape(base64.URLEncoding.EncodeToString(jsonData))
}
