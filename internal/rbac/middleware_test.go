package rbac

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"call-platform/internal/auth"

	"github.com/gin-gonic/gin"
)

func serveAs(t *testing.T, workspaceID, role string, allowed ...string) int {
	t.Helper()
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.GET("/x", func(c *gin.Context) {
		ctx := auth.WithIdentity(c.Request.Context(), "u", workspaceID, role)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}, RequireWorkspace(), RequireAnyRole(allowed...), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	return w.Code
}

func TestRequireAnyRole_SuperAdminBypasses(t *testing.T) {
	if code := serveAs(t, "w", RoleSuperAdmin, OperatorRoles...); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
}

func TestRequireAnyRole_MemberCannotOperate(t *testing.T) {
	if code := serveAs(t, "w", RoleMember, OperatorRoles...); code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", code)
	}
	if code := serveAs(t, "w", RoleMember, CallerRoles...); code != http.StatusOK {
		t.Fatalf("expected member to place calls, got %d", code)
	}
}

func TestRequireAnyRole_HiddenRoleDeniedUnlessAllowed(t *testing.T) {
	if code := serveAs(t, "w", RoleSupport, OperatorRoles...); code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", code)
	}
	if code := serveAs(t, "w", RoleSupport, append(OperatorRoles, RoleSupport)...); code != http.StatusOK {
		t.Fatalf("expected opt-in hidden role to pass, got %d", code)
	}
}

func TestRequireWorkspace(t *testing.T) {
	if code := serveAs(t, "", RoleOwner, OperatorRoles...); code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", code)
	}
}
