package school

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/nduongctu/face-reco-parents-preschool-child/internal/auth"
)

// Handler exposes the CRUD surface over the school schema.
type Handler struct {
	repo *Repository
}

// NewHandler creates the handler.
func NewHandler(repo *Repository) *Handler {
	return &Handler{repo: repo}
}

// Register mounts the CRUD routes on an authenticated group.
func (h *Handler) Register(g *gin.RouterGroup) {
	g.GET("/teachers", h.listTeachers)
	g.GET("/teachers/:id", h.getTeacher)
	g.POST("/teachers", h.createTeacher)
	g.PUT("/teachers/:id", h.updateTeacher)
	g.DELETE("/teachers/:id", h.deleteTeacher)

	g.GET("/students", h.listStudents)
	g.GET("/students/:id", h.getStudent)
	g.POST("/students", h.createStudent)
	g.PUT("/students/:id", h.updateStudent)
	g.DELETE("/students/:id", h.deleteStudent)
	g.POST("/students/:id/guardians", h.linkGuardian)

	g.GET("/classes", h.listClasses)
	g.GET("/classes/:id", h.getClass)
	g.POST("/classes", h.createClass)
	g.PUT("/classes/:id", h.updateClass)
	g.DELETE("/classes/:id", h.deleteClass)

	g.GET("/years", h.listYears)
	g.GET("/years/:id", h.getYear)
	g.POST("/years", h.createYear)
	g.PUT("/years/:id", h.updateYear)
	g.DELETE("/years/:id", h.deleteYear)

	g.GET("/accounts", h.listAccounts)
	g.GET("/accounts/:id", h.getAccount)
	g.POST("/accounts", h.createAccount)
	g.PUT("/accounts/:id", h.updateAccount)
	g.DELETE("/accounts/:id", h.deleteAccount)

	g.GET("/guardians", h.listGuardians)
	g.GET("/guardians/:id", h.getGuardian)
	g.POST("/guardians", h.createGuardian)
	g.PUT("/guardians/:id", h.updateGuardian)
	g.DELETE("/guardians/:id", h.deleteGuardian)
}

func pathID(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

func writeErr(c *gin.Context, err error) {
	if errors.Is(err, ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

// ---------- Teachers ----------

func (h *Handler) listTeachers(c *gin.Context) {
	teachers, err := h.repo.ListTeachers(c.Request.Context())
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"teachers": teachers})
}

func (h *Handler) getTeacher(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	t, err := h.repo.GetTeacher(c.Request.Context(), id)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

type createTeacherRequest struct {
	Name      string `json:"ten_gv" binding:"required"`
	Gender    string `json:"gioitinh_gv" binding:"required"`
	BirthDate string `json:"ngaysinh_gv" binding:"required"`
	Address   string `json:"diachi_gv" binding:"required"`
	Phone     string `json:"sdt_gv" binding:"required"`
	Email     string `json:"email_gv" binding:"required"`
	Login     string `json:"taikhoan" binding:"required"`
	Password  string `json:"matkhau" binding:"required"`
	Role      int    `json:"quyen"`
}

func (h *Handler) createTeacher(c *gin.Context) {
	var req createTeacherRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		writeErr(c, err)
		return
	}
	t := Teacher{
		Name: req.Name, Gender: req.Gender, BirthDate: req.BirthDate,
		Address: req.Address, Phone: req.Phone, Email: req.Email,
	}
	t, err = h.repo.CreateTeacher(c.Request.Context(), t, req.Login, hash, req.Role)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, t)
}

func (h *Handler) updateTeacher(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var t Teacher
	if err := c.ShouldBindJSON(&t); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	t.ID = id
	if err := h.repo.UpdateTeacher(c.Request.Context(), t); err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h *Handler) deleteTeacher(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.repo.DeleteTeacher(c.Request.Context(), id); err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "teacher deleted"})
}

// ---------- Students ----------

func (h *Handler) listStudents(c *gin.Context) {
	students, err := h.repo.ListStudents(c.Request.Context())
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"students": students})
}

func (h *Handler) getStudent(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	s, err := h.repo.GetStudent(c.Request.Context(), id)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

func (h *Handler) createStudent(c *gin.Context) {
	var s Student
	if err := c.ShouldBindJSON(&s); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s, err := h.repo.CreateStudent(c.Request.Context(), s)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, s)
}

func (h *Handler) updateStudent(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var s Student
	if err := c.ShouldBindJSON(&s); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s.ID = id
	if err := h.repo.UpdateStudent(c.Request.Context(), s); err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

func (h *Handler) deleteStudent(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.repo.DeleteStudent(c.Request.Context(), id); err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "student deleted"})
}

type linkGuardianRequest struct {
	GuardianID   int    `json:"id_ph" binding:"required"`
	Relationship string `json:"quanhe" binding:"required"`
}

func (h *Handler) linkGuardian(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req linkGuardianRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.repo.LinkGuardian(c.Request.Context(), id, req.GuardianID, req.Relationship); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "guardian linked"})
}

// ---------- Classes ----------

func (h *Handler) listClasses(c *gin.Context) {
	classes, err := h.repo.ListClasses(c.Request.Context())
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"classes": classes})
}

func (h *Handler) getClass(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	cls, err := h.repo.GetClass(c.Request.Context(), id)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, cls)
}

func (h *Handler) createClass(c *gin.Context) {
	var cls Class
	if err := c.ShouldBindJSON(&cls); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	cls, err := h.repo.CreateClass(c.Request.Context(), cls)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, cls)
}

func (h *Handler) updateClass(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var cls Class
	if err := c.ShouldBindJSON(&cls); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	cls.ID = id
	if err := h.repo.UpdateClass(c.Request.Context(), cls); err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, cls)
}

func (h *Handler) deleteClass(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.repo.DeleteClass(c.Request.Context(), id); err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "class deleted"})
}

// ---------- Years ----------

func (h *Handler) listYears(c *gin.Context) {
	years, err := h.repo.ListYears(c.Request.Context())
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"years": years})
}

func (h *Handler) getYear(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	y, err := h.repo.GetYear(c.Request.Context(), id)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, y)
}

func (h *Handler) createYear(c *gin.Context) {
	var y Year
	if err := c.ShouldBindJSON(&y); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	y, err := h.repo.CreateYear(c.Request.Context(), y.Name)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, y)
}

func (h *Handler) updateYear(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var y Year
	if err := c.ShouldBindJSON(&y); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	y.ID = id
	if err := h.repo.UpdateYear(c.Request.Context(), y); err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, y)
}

func (h *Handler) deleteYear(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.repo.DeleteYear(c.Request.Context(), id); err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "year deleted"})
}

// ---------- Accounts ----------

func (h *Handler) listAccounts(c *gin.Context) {
	accounts, err := h.repo.ListAccounts(c.Request.Context())
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"accounts": accounts})
}

func (h *Handler) getAccount(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	a, err := h.repo.GetAccount(c.Request.Context(), id)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

type createAccountRequest struct {
	Login    string `json:"taikhoan" binding:"required"`
	Password string `json:"matkhau" binding:"required"`
	Role     int    `json:"quyen"`
}

func (h *Handler) createAccount(c *gin.Context) {
	var req createAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		writeErr(c, err)
		return
	}
	a, err := h.repo.CreateAccount(c.Request.Context(), req.Login, hash, req.Role)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, a)
}

type updateAccountRequest struct {
	Password string `json:"matkhau" binding:"required"`
	Role     int    `json:"quyen"`
}

func (h *Handler) updateAccount(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req updateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		writeErr(c, err)
		return
	}
	if err := h.repo.UpdateAccount(c.Request.Context(), id, hash, req.Role); err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "account updated"})
}

func (h *Handler) deleteAccount(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.repo.DeleteAccount(c.Request.Context(), id); err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "account deleted"})
}

// ---------- Guardians ----------

func (h *Handler) listGuardians(c *gin.Context) {
	guardians, err := h.repo.ListGuardians(c.Request.Context())
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"guardians": guardians})
}

func (h *Handler) getGuardian(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	g, err := h.repo.GetGuardian(c.Request.Context(), id)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, g)
}

func (h *Handler) createGuardian(c *gin.Context) {
	var g Guardian
	if err := c.ShouldBindJSON(&g); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	g, err := h.repo.CreateGuardian(c.Request.Context(), g)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, g)
}

func (h *Handler) updateGuardian(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var g Guardian
	if err := c.ShouldBindJSON(&g); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	g.ID = id
	if err := h.repo.UpdateGuardian(c.Request.Context(), g); err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, g)
}

func (h *Handler) deleteGuardian(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.repo.DeleteGuardian(c.Request.Context(), id); err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "guardian deleted"})
}
